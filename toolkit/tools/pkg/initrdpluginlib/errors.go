// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginlib

type InitrdPluginError struct {
	name    string
	message string
}

func NewInitrdPluginError(name string, message string) *InitrdPluginError {
	return &InitrdPluginError{
		name:    name,
		message: message,
	}
}

func (e *InitrdPluginError) Name() string {
	return e.name
}

func (e *InitrdPluginError) Error() string {
	return e.message
}
