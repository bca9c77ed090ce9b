// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

// Keeps log messages in memory so unit tests can check what was logged.

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type MemoryLogHook struct {
	lock     sync.Mutex
	messages []MemoryLogMessage
}

type MemoryLogMessage struct {
	Message string
	Level   logrus.Level
}

func NewMemoryLogHook() *MemoryLogHook {
	return &MemoryLogHook{}
}

func (h *MemoryLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *MemoryLogHook) Fire(entry *logrus.Entry) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.messages = append(h.messages, MemoryLogMessage{
		Message: entry.Message,
		Level:   entry.Level,
	})
	return nil
}

// ConsumeMessages returns the messages logged since the last call and clears them.
func (h *MemoryLogHook) ConsumeMessages() []MemoryLogMessage {
	h.lock.Lock()
	defer h.lock.Unlock()

	messages := h.messages
	h.messages = nil
	return messages
}
