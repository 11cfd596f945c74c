package common

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a prefixed random identifier, e.g. "exe_3f2a...".
func GenerateID(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

func GenerateExecutionID() string {
	return GenerateID("exe")
}

func GenerateWorkflowID() string {
	return GenerateID("wf")
}
