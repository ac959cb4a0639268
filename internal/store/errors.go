package store

import "errors"

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrJobTerminal       = errors.New("job already in terminal status")
)
