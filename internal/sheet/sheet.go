package sheet

import (
	"fmt"
	"regexp"

	"github.com/ptrckSTL/BoomOrganized/internal/models"
)

// ColumnLabel is a semantic role a spreadsheet column can be mapped to
type ColumnLabel string

const (
	ColumnFirstName ColumnLabel = "first_name"
	ColumnLastName  ColumnLabel = "last_name"
	ColumnCellPhone ColumnLabel = "cell"
)

// Unmapped marks a semantic role with no column assigned
const Unmapped = -1

// Sheet is a tabular recipient source with its column mapping. Indices
// are Unmapped or within [0, len(Headers)); no two roles ever point at
// the same column.
type Sheet struct {
	Headers        []string   `json:"headers"`
	Rows           [][]string `json:"rows"`
	FirstNameIndex int        `json:"first_name_index"`
	LastNameIndex  int        `json:"last_name_index"`
	CellIndex      int        `json:"cell_index"`
}

// SourceError reports a recipient source that cannot be used at all
// (malformed file, no data rows). It never mutates the store.
type SourceError struct {
	Message string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error: %s", e.Message)
}

// FromRows builds a Sheet from raw rows: the first row becomes the
// header, the rest the data, and the column mapping is auto-detected.
func FromRows(rows [][]string) (Sheet, error) {
	if len(rows) < 2 {
		return Sheet{}, &SourceError{Message: "malformed or empty source was found, please select a different file"}
	}
	first, last, cell := DetectColumns(rows[0])
	return Sheet{
		Headers:        rows[0],
		Rows:           rows[1:],
		FirstNameIndex: first,
		LastNameIndex:  last,
		CellIndex:      cell,
	}, nil
}

// Header patterns for best-effort column detection. Full-string,
// case-insensitive matches against header text.
var (
	firstNameHeader = regexp.MustCompile(`(?i)^(first( name)?|firstname)$`)
	lastNameHeader  = regexp.MustCompile(`(?i)^(last( name)?|lastname)$`)
	cellHeader      = regexp.MustCompile(`(?i)^(cell(ular)?( phone)?|cellphone|phone(1|\s)?|mobile)$`)
)

// DetectColumns maps header text to the three semantic roles, returning
// Unmapped for any role without a matching header.
func DetectColumns(header []string) (firstName, lastName, cell int) {
	firstName, lastName, cell = Unmapped, Unmapped, Unmapped
	for i, h := range header {
		switch {
		case firstNameHeader.MatchString(h):
			firstName = i
		case lastNameHeader.MatchString(h):
			lastName = i
		case cellHeader.MatchString(h):
			cell = i
		}
	}
	return firstName, lastName, cell
}

// Assign maps a column index to a semantic role, clearing any other role
// that currently points at the same column so the mutual-exclusivity
// invariant holds.
func (s Sheet) Assign(label ColumnLabel, index int) Sheet {
	switch label {
	case ColumnFirstName:
		if s.LastNameIndex == index {
			s.LastNameIndex = Unmapped
		}
		if s.CellIndex == index {
			s.CellIndex = Unmapped
		}
		s.FirstNameIndex = index
	case ColumnLastName:
		if s.FirstNameIndex == index {
			s.FirstNameIndex = Unmapped
		}
		if s.CellIndex == index {
			s.CellIndex = Unmapped
		}
		s.LastNameIndex = index
	case ColumnCellPhone:
		if s.FirstNameIndex == index {
			s.FirstNameIndex = Unmapped
		}
		if s.LastNameIndex == index {
			s.LastNameIndex = Unmapped
		}
		s.CellIndex = index
	}
	return s
}

// Unassign clears the column mapped to the given role
func (s Sheet) Unassign(label ColumnLabel) Sheet {
	switch label {
	case ColumnFirstName:
		s.FirstNameIndex = Unmapped
	case ColumnLastName:
		s.LastNameIndex = Unmapped
	case ColumnCellPhone:
		s.CellIndex = Unmapped
	}
	return s
}

// phonePattern is a port of Android's Patterns.PHONE: optional +country
// code, optional parenthesized group, then at least two digits with
// optional separators.
var phonePattern = regexp.MustCompile(`^(\+[0-9]+[\- .]*)?(\([0-9]+\)[\- .]*)?([0-9][0-9\- .]*[0-9])$`)

// ValidPhone reports whether the cell value looks like a phone number
func ValidPhone(value string) bool {
	return phonePattern.MatchString(value)
}

// cellAt returns the phone value of a row under the current mapping
func (s Sheet) cellAt(row []string) string {
	if s.CellIndex == Unmapped || s.CellIndex >= len(row) {
		return ""
	}
	return row[s.CellIndex]
}

// CountBrokenNumbers counts rows whose mapped cell value is blank or not
// phone-like
func (s Sheet) CountBrokenNumbers() int {
	broken := 0
	for _, row := range s.Rows {
		if cell := s.cellAt(row); cell == "" || !ValidPhone(cell) {
			broken++
		}
	}
	return broken
}

// FilterBrokenNumbers drops rows whose mapped cell value is blank or not
// phone-like
func (s Sheet) FilterBrokenNumbers() Sheet {
	kept := make([][]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		if cell := s.cellAt(row); cell != "" && ValidPhone(cell) {
			kept = append(kept, row)
		}
	}
	s.Rows = kept
	return s
}

// valueAt returns the trimmed value of a row at index, or nil when the
// role is unmapped or the row is short
func valueAt(row []string, index int) *string {
	if index == Unmapped || index >= len(row) {
		return nil
	}
	v := row[index]
	return &v
}

// FirstName returns the mapped first name of the given data row
func (s Sheet) FirstName(rowIndex int) *string {
	if rowIndex >= len(s.Rows) {
		return nil
	}
	return valueAt(s.Rows[rowIndex], s.FirstNameIndex)
}

// LastName returns the mapped last name of the given data row
func (s Sheet) LastName(rowIndex int) *string {
	if rowIndex >= len(s.Rows) {
		return nil
	}
	return valueAt(s.Rows[rowIndex], s.LastNameIndex)
}

// Recipients converts mapped rows into pending recipients, skipping rows
// without a usable phone number
func (s Sheet) Recipients() []*models.Recipient {
	recipients := make([]*models.Recipient, 0, len(s.Rows))
	for _, row := range s.Rows {
		cell := s.cellAt(row)
		if cell == "" || !ValidPhone(cell) {
			continue
		}
		recipients = append(recipients, models.NewRecipient(
			cell,
			valueAt(row, s.FirstNameIndex),
			valueAt(row, s.LastNameIndex),
		))
	}
	return recipients
}
