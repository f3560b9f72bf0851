// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrProfileNotFound means the provider lookup yielded no profile.
type ErrProfileNotFound struct {
	Ref string
}

func (e *ErrProfileNotFound) Error() string {
	return fmt.Sprintf("no profile found for reference %q", e.Ref)
}

func NewProfileNotFound(ref string) error {
	return &ErrProfileNotFound{Ref: ref}
}

// ErrInvalidReference means the LinkedIn reference is empty or malformed.
type ErrInvalidReference struct {
	Ref string
}

func (e *ErrInvalidReference) Error() string {
	return fmt.Sprintf("invalid linkedin reference %q", e.Ref)
}

func NewInvalidReference(ref string) error {
	return &ErrInvalidReference{Ref: ref}
}

// ErrRateLimited means the provider signalled throttling. Callers must back
// off for RetryAfter before retrying, never retry immediately.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("provider rate limited, retry after %s", e.RetryAfter)
}

func NewRateLimited(retryAfter time.Duration) error {
	return &ErrRateLimited{RetryAfter: retryAfter}
}

// ErrAccountDisconnected means the sending account is not usable.
type ErrAccountDisconnected struct {
	AccountID int
}

func (e *ErrAccountDisconnected) Error() string {
	return fmt.Sprintf("sending account %d is not connected", e.AccountID)
}

func NewAccountDisconnected(id int) error {
	return &ErrAccountDisconnected{AccountID: id}
}

func IsProfileNotFound(err error) bool {
	var e *ErrProfileNotFound
	return errors.As(err, &e)
}

func IsInvalidReference(err error) bool {
	var e *ErrInvalidReference
	return errors.As(err, &e)
}

func IsRateLimited(err error) (*ErrRateLimited, bool) {
	var e *ErrRateLimited
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation. An admission insert hitting this means the entry already exists
// and must be treated as a no-op, not an operational failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
