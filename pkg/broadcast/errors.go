package broadcast

import "errors"

var (
	ErrClosed        = errors.New("broadcast: closed")
	ErrTopicRequired = errors.New("broadcast: topic is required")
)
