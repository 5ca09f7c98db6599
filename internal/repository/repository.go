package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ptrckSTL/BoomOrganized/internal/models"
)

// RecipientStore defines recipient data access operations. It is the
// single source of truth shared by the session, the job runner and the
// delivery-receipt consumer; every mutation is individually atomic and
// fires the registered change listeners once committed.
type RecipientStore interface {
	Upsert(ctx context.Context, recipient *models.Recipient) error
	BulkLoad(ctx context.Context, recipients []*models.Recipient) error
	UpdateStatus(ctx context.Context, uuid string, status models.RecipientStatus) error
	// Pending returns every row in stable load order. Despite the name,
	// callers filter by status themselves before acting; the naming
	// follows the store's primary use.
	Pending(ctx context.Context) ([]*models.Recipient, error)
	Counts(ctx context.Context) (models.RecipientCounts, error)
	Clear(ctx context.Context) error
	// ReclaimStale reverts rows stuck in "sending" longer than olderThan
	// back to "pending" and returns how many were reclaimed.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
	// AddListener registers a callback invoked after every committed
	// mutation, so observers can recompute counts without polling.
	AddListener(fn func())
}

// PrefsStore is a small key/value store persisting the composed script
// and attachment reference across process restarts.
type PrefsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Preference keys
const (
	PrefScript        = "script"
	PrefAttachmentRef = "attachment_ref"
)

// ErrRecipientNotFound is returned by UpdateStatus when no row matches
// the given id. Receipt consumers treat it as terminal: a fresh start or
// reset can clear rows while dispatches are still in flight, so a stale
// tag is expected, not transient.
var ErrRecipientNotFound = errors.New("recipient not found")
