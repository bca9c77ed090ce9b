// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginapi

import (
	"fmt"
	"path"
	"strings"

	"github.com/asaskevich/govalidator"
)

// validateStageRelativePath checks a path that is expanded relative to the stage directory.
func validateStageRelativePath(value string) error {
	if value == "" {
		return fmt.Errorf("path is empty")
	}

	if path.IsAbs(value) {
		return fmt.Errorf("path (%s) must be relative to the stage directory", value)
	}

	if !govalidator.IsUnixFilePath(value) {
		return fmt.Errorf("path (%s) is not a valid file path", value)
	}

	cleaned := path.Clean(value)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path (%s) must not escape the stage directory", value)
	}

	return nil
}
