package models

import "github.com/pkg/errors"

// Storage-level sentinels. Services translate them into apperr kinds.
var (
	ErrNotFound            = errors.New("not found")
	ErrTrackingNumberTaken = errors.New("tracking number already taken")
	ErrEmailTaken          = errors.New("email already registered")
	ErrStatusConflict      = errors.New("status changed concurrently")
)
