package model

import "errors"

var (
	// ErrNoCredential is returned when a connection is attempted without a bearer credential.
	ErrNoCredential = errors.New("no credential available")

	// ErrNotConnected is returned when a send is attempted while the socket is not open.
	ErrNotConnected = errors.New("not connected")

	// ErrUnknownPhase is returned when the server asserts a phase outside the known set.
	ErrUnknownPhase = errors.New("unknown workflow phase")

	// ErrSessionNotFound is returned when a conversation cannot be located.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when credentials could not be refreshed.
	ErrSessionExpired = errors.New("session expired")

	// ErrUpgradeRequired is returned when an operation is blocked by the active plan.
	ErrUpgradeRequired = errors.New("plan upgrade required")

	// ErrSelectionLimit is returned when a document selection exceeds the allowed count.
	ErrSelectionLimit = errors.New("selection exceeds allowed count")

	// ErrSelectionEmpty is returned when a document selection contains no entries.
	ErrSelectionEmpty = errors.New("selection is empty")
)
