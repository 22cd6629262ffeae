package exports

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// WriteCSV writes rows with a header line. Every field is quoted by the
// encoder only when needed; a UTF-8 BOM is emitted so spreadsheet programs
// detect the encoding.
func WriteCSV(w io.Writer, rows []Row, loc *time.Location) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Cells(loc)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
