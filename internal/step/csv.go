package step

import (
	"encoding/csv"
	"strings"

	"github.com/blackcoderx/talon/internal/value"
)

// parseCSV turns CSV text into a list of row-maps keyed by the header
// row, the shape the `csv` keyword assigns.
func parseCSV(text string) (value.Value, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return value.Null(), err
	}
	if len(records) == 0 {
		return value.NewList(nil), nil
	}
	headers := records[0]
	rows := make([]value.Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		om := value.NewOrderedMap()
		for i, h := range headers {
			if i < len(rec) {
				om.Set(h, value.NewString(rec[i]))
			}
		}
		rows = append(rows, value.NewMap(om))
	}
	return value.NewList(rows), nil
}
