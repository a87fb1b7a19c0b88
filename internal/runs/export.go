// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runs

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pdiddy/schema-extract/internal/schema"
	"github.com/pdiddy/schema-extract/pkg/types"
)

// Export writes run to w as indented JSON or as YAML. Stored chunk
// outputs keep their key order in both formats.
func Export(w io.Writer, run *types.Run, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "yaml", "yml":
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshaling run: %w", err)
		}
		out, err := schema.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}
