// Package entities contains core business entities and errors.
package entities

import "errors"

var (
	// ErrValidation signals failed submission input validation.
	ErrValidation = errors.New("validation failed")
	// ErrRequestNotFound is returned when a maintenance request does not exist.
	ErrRequestNotFound = errors.New("request not found")
	// ErrInvalidTransition signals a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMissingVariable signals a template placeholder with no value and no default.
	ErrMissingVariable = errors.New("missing template variable")
	// ErrDispatchFailed signals a channel send that failed after all retries.
	ErrDispatchFailed = errors.New("dispatch failed")
	// ErrInvalidSettings signals notification settings that cannot be activated.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrSettingsNotFound is returned when no settings version has been saved yet.
	ErrSettingsNotFound = errors.New("settings not found")
)
