package kiosk

import "errors"

var (
	// ErrBusy is returned when another acquisition or cache clear holds the cache lock.
	ErrBusy = errors.New("cache is busy with another acquisition")
	// ErrInvalidState is returned when an OAuth callback carries an unknown or expired state.
	ErrInvalidState = errors.New("authorization state is unknown or expired")
)
