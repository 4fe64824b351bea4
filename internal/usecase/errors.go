package usecase

import "errors"

var (
	ErrUnknownHandicapType = errors.New("unknown handicap type")
	ErrUnknownBackend      = errors.New("unknown backend")
	ErrInvalidEvent        = errors.New("invalid record event")
)
