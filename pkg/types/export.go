// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ExportFormat identifies a target format an imported file can be converted to.
type ExportFormat string

const (
	FormatSTEP ExportFormat = "step"
	FormatSTL  ExportFormat = "stl"
	FormatOBJ  ExportFormat = "obj"
)

// SupportedFormats lists every export format in display order.
var SupportedFormats = []ExportFormat{FormatSTEP, FormatSTL, FormatOBJ}

// Extension returns the file extension for the format, including the dot.
func (f ExportFormat) Extension() string {
	return "." + string(f)
}

// Label returns the upper-case display name (e.g. "STEP").
func (f ExportFormat) Label() string {
	return strings.ToUpper(string(f))
}

// ParseFormat converts a user-supplied name into an ExportFormat. Matching is
// case-insensitive and tolerates a leading dot.
func ParseFormat(s string) (ExportFormat, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	for _, f := range SupportedFormats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format %q (want one of step, stl, obj)", s)
}

// ExportStatus tracks the lifecycle of one export of one imported file.
type ExportStatus string

const (
	ExportNone       ExportStatus = "none"
	ExportInProgress ExportStatus = "in_progress"
	ExportDone       ExportStatus = "done"
	ExportFailed     ExportStatus = "failed"
	// ExportAborted is only written to history; a live export that was
	// aborted reverts to ExportNone.
	ExportAborted ExportStatus = "aborted"
)
