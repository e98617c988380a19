package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/kv"
	"github.com/noah-isme/grievance-api/pkg/lock"
)

// NewID returns a UUIDv7: a millisecond timestamp prefix followed by random bits.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// lockError maps a failed lock acquisition to an API error.
func lockError(err error) error {
	if errors.Is(err, lock.ErrBusy) {
		return appErrors.ErrRecordBusy
	}
	return appErrors.Internal(err, "failed to acquire record lock")
}

// notFoundOr maps kv.ErrNotFound to a NOT_FOUND error and anything else to a 500.
func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, kv.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	return appErrors.Internal(err, internalMsg)
}
