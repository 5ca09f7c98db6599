package sheet

import "fmt"

// SheetErrorKind enumerates mapping validation outcomes
type SheetErrorKind string

const (
	ErrNone          SheetErrorKind = "none"
	ErrNoFirstName   SheetErrorKind = "no_first_name"
	ErrNoLastName    SheetErrorKind = "no_last_name"
	ErrNoCellColumn  SheetErrorKind = "no_cell_column"
	ErrBrokenNumbers SheetErrorKind = "broken_numbers"
)

// SheetError is the result of validating a column mapping against the
// labels the script requires. It is comparable so the session can tell
// when the same warning is being shown a second time.
type SheetError struct {
	Kind  SheetErrorKind `json:"kind"`
	Count int            `json:"count,omitempty"`
}

// NoError is the zero validation result
var NoError = SheetError{Kind: ErrNone}

// IsNone reports validation success
func (e SheetError) IsNone() bool {
	return e.Kind == ErrNone || e.Kind == ""
}

// Blocking reports whether the error must stop the flow outright. Only a
// missing cell column blocks; everything else is a warning the user can
// confirm past.
func (e SheetError) Blocking() bool {
	return e.Kind == ErrNoCellColumn
}

// Message renders the user-facing text
func (e SheetError) Message() string {
	switch e.Kind {
	case ErrNoFirstName:
		return "the script references a first name but no first name column is mapped"
	case ErrNoLastName:
		return "the script references a last name but no last name column is mapped"
	case ErrNoCellColumn:
		return "need a cell phone column"
	case ErrBrokenNumbers:
		return fmt.Sprintf("%d rows have missing or malformed phone numbers and will be skipped", e.Count)
	default:
		return ""
	}
}

// Validate checks the mapping against the required label set. Name
// checks run first so their warnings surface before the row scan.
func (s Sheet) Validate(required map[ColumnLabel]bool) SheetError {
	switch {
	case required[ColumnFirstName] && s.FirstNameIndex == Unmapped:
		return SheetError{Kind: ErrNoFirstName}
	case required[ColumnLastName] && s.LastNameIndex == Unmapped:
		return SheetError{Kind: ErrNoLastName}
	case s.CellIndex == Unmapped:
		return SheetError{Kind: ErrNoCellColumn}
	}
	if broken := s.CountBrokenNumbers(); broken > 0 {
		return SheetError{Kind: ErrBrokenNumbers, Count: broken}
	}
	return NoError
}
