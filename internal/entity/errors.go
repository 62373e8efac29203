package entity

import "errors"

var (
	// Event errors
	ErrEventNotFound = errors.New("event not found")
	ErrEventDatePast = errors.New("event end cannot be before its start")

	// Attendance errors
	ErrAttendeeNotFound   = errors.New("attendee not found")
	ErrBarcodeExists      = errors.New("barcode already exists")
	ErrBarcodeExhausted   = errors.New("barcode generation retries exhausted")
	ErrInvalidAffiliation = errors.New("invalid affiliation")
)
