package sheet

import (
	"encoding/csv"
	"errors"
	"io"
)

// ReadCSV parses a delimited recipient source into a Sheet with a
// best-effort column mapping. The file needs a header row and at least
// one row of content.
func ReadCSV(r io.Reader) (Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are tolerated, validation filters them
	reader.TrimLeadingSpace = true

	rows := [][]string{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Sheet{}, &SourceError{Message: "malformed or empty CSV was found, please select a different file"}
		}
		rows = append(rows, record)
	}

	return FromRows(rows)
}
