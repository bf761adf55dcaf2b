package builder

import (
	"errors"
	"strings"
)

// ErrNoSession is recorded by a [TransferBuilder] that was not given a
// handle to bind to.
var ErrNoSession = errors.New("no session to bind the transfer to")

// ErrClosed is returned by [EasyBuilder.Result] after Close.
var ErrClosed = errors.New("builder closed")

// BuildError is returned by Result when at least one step of the chain
// failed. Errs holds every failure in the order it happened.
type BuildError struct {
	Errs []error
}

func (e *BuildError) Error() string {
	var b strings.Builder
	for i, err := range e.Errs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap lets [errors.Is] and [errors.As] reach each recorded error.
func (e *BuildError) Unwrap() []error {
	return e.Errs
}
