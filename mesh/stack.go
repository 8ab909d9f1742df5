package mesh

import (
	"fmt"

	"github.com/juju/errors"
)

// Stack is provided by the mesh transport.
// SendCustomData takes explicit frame bytes, length is len(frame).
// Failures should be *SendError so callers can log numeric result code.
type Stack interface {
	SendCustomData(dst Address, frame []byte) error
}

type StackFunc func(dst Address, frame []byte) error

func (f StackFunc) SendCustomData(dst Address, frame []byte) error { return f(dst, frame) }

// Result codes, modelled after vendor mesh stack status values.
const (
	ResultSuccess     = 0
	ResultError       = 1
	ResultNotReady    = 2
	ResultNoRoute     = 3
	ResultBusy        = 4
	ResultTooLarge    = 5
	ResultUnreachable = 6
)

type SendError struct {
	Code int
	Dst  Address
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mesh send dst=%s code=%d", e.Dst, e.Code)
}

// ResultCode extracts numeric code, ResultError for foreign errors, ResultSuccess for nil.
func ResultCode(err error) int {
	if err == nil {
		return ResultSuccess
	}
	if se, ok := errors.Cause(err).(*SendError); ok {
		return se.Code
	}
	return ResultError
}
