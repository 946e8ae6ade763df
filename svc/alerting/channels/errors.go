package channels

import "errors"

var (
	ErrInvalidAddress = errors.New("channels: invalid address")
	ErrEmptyContent   = errors.New("channels: empty content")
	ErrNotConfigured  = errors.New("channels: transport not configured")
)
