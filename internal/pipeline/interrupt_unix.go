//go:build unix

package pipeline

import (
	"errors"

	"golang.org/x/sys/unix"
)

// interrupted reports whether a read failed only because a signal arrived
// before any data, in which case the read is simply retried.
func interrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
