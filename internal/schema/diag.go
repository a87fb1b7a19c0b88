// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"fmt"
	"log/slog"
)

// Diagnostics collects the recoverable problems found while walking a schema:
// unsupported or dangling references and missing definitions. Every warning
// is kept and, when a logger is set, also logged.
type Diagnostics struct {
	Logger   *slog.Logger
	Warnings []string
}

// Warnf records a warning. A nil receiver discards it.
func (d *Diagnostics) Warnf(format string, args ...any) {
	if d == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	d.Warnings = append(d.Warnings, msg)
	if d.Logger != nil {
		d.Logger.Warn(msg)
	}
}
