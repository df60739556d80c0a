package runner

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/pthm/fhirsql"
)

// Output formats for WriteRows.
const (
	FormatTable  = "table"
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatTable, FormatJSON, FormatNDJSON}

// WriteRows renders rows to w. Empty results print as "{}" in table form
// and as null in JSON.
func WriteRows(w io.Writer, rows []fhirsql.Row, format string) error {
	switch format {
	case FormatTable, "":
		data := pterm.TableData{{"id", "result"}}
		for _, r := range rows {
			result := "{}"
			if r.Result != nil {
				result = *r.Result
			}
			data = append(data, []string{r.ID, result})
		}
		out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err

	case FormatJSON:
		if rows == nil {
			rows = []fhirsql.Row{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case FormatNDJSON:
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown output format %q (want one of %v)", format, Formats)
}
