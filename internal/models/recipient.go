package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecipientStatus represents valid recipient delivery statuses
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSending RecipientStatus = "sending"
	RecipientStatusSent    RecipientStatus = "sent"
)

// recipientNamespace is the fixed UUIDv5 namespace for recipient IDs.
// Changing it would break correlation with receipts already in flight.
var recipientNamespace = uuid.MustParse("8f3c1a52-7e4d-4b0a-9c6e-2d1f5b8a9e37")

// RecipientID derives the stable recipient ID from (phone, firstName).
// The same pair always yields the same ID, so re-importing a contact
// upserts instead of duplicating, and the ID doubles as the correlation
// tag joining delivery receipts back to rows.
func RecipientID(phone string, firstName *string) string {
	name := phone
	if firstName != nil {
		name += *firstName
	}
	return uuid.NewSHA1(recipientNamespace, []byte(name)).String()
}

// Recipient represents one row of the recipient table
type Recipient struct {
	UUID      string          `json:"uuid" db:"uuid"`
	Phone     string          `json:"phone" db:"phone"`
	FirstName *string         `json:"first_name,omitempty" db:"first_name"`
	LastName  *string         `json:"last_name,omitempty" db:"last_name"`
	Status    RecipientStatus `json:"status" db:"status"`
	Position  int             `json:"position" db:"position"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// NewRecipient builds a pending recipient with its derived ID
func NewRecipient(phone string, firstName, lastName *string) *Recipient {
	return &Recipient{
		UUID:      RecipientID(phone, firstName),
		Phone:     phone,
		FirstName: firstName,
		LastName:  lastName,
		Status:    RecipientStatusPending,
	}
}

// Label returns the human-readable name shown while this recipient is
// being processed. A recipient with no names at all shows its phone.
func (r *Recipient) Label() string {
	var first, last string
	if r.FirstName != nil {
		first = *r.FirstName
	}
	if r.LastName != nil {
		last = *r.LastName
	}
	label := strings.TrimSpace(first + " " + last)
	if label == "" {
		return r.Phone
	}
	return label
}

// RecipientCounts is the aggregate fold of recipients grouped by status.
// It is derived, never stored.
type RecipientCounts struct {
	Pending int `json:"pending"`
	Sending int `json:"sending"`
	Sent    int `json:"sent"`
}

// Total returns the total row count behind the fold
func (c RecipientCounts) Total() int {
	return c.Pending + c.Sending + c.Sent
}

// IsEmpty reports whether the recipient table is empty
func (c RecipientCounts) IsEmpty() bool {
	return c.Pending == 0 && c.Sending == 0 && c.Sent == 0
}

// CountRecipients folds a recipient list into counts
func CountRecipients(recipients []*Recipient) RecipientCounts {
	var counts RecipientCounts
	for _, r := range recipients {
		switch r.Status {
		case RecipientStatusPending:
			counts.Pending++
		case RecipientStatusSending:
			counts.Sending++
		case RecipientStatusSent:
			counts.Sent++
		}
	}
	return counts
}
