package gateway

import (
	"errors"
	"fmt"
)

// ErrUnreachable indicates the remote could not be reached at all:
// timeout, connection refused, DNS failure. Always retryable.
var ErrUnreachable = errors.New("remote unreachable")

// StatusError indicates the remote responded but rejected the request at
// the application level.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote rejected request: HTTP %d", e.Code)
	}
	return fmt.Sprintf("remote rejected request: HTTP %d: %s", e.Code, e.Detail)
}

// IsUnreachable reports whether err is a network-unreachable condition as
// opposed to a server rejection.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
