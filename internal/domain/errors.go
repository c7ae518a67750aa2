package domain

import "errors"

var (
	// ErrNotFound is returned when an item does not exist in the store.
	ErrNotFound = errors.New("item not found")
	// ErrClaimLost means another run owns the item or it already moved on.
	ErrClaimLost = errors.New("item claim lost")
	// ErrSlotUnavailable means no publication slot exists within the search horizon.
	ErrSlotUnavailable = errors.New("no publication slot available")
	// ErrEmptyCaption is returned when enrichment produced no usable text.
	ErrEmptyCaption = errors.New("generated caption is empty")
	// ErrUnavailable marks a collaborator-wide outage (revoked auth, misconfiguration).
	ErrUnavailable = errors.New("collaborator unavailable")
)
