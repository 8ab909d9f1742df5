package protocol

import (
	"fmt"

	"github.com/juju/errors"
)

var ErrTruncated = fmt.Errorf("protocol: frame truncated")

func truncated(field string, need, length int) error {
	return errors.Annotatef(ErrTruncated, "field=%s need=%d length=%d", field, need, length)
}

// IsTruncated reports whether err was caused by reading beyond declared frame length.
func IsTruncated(err error) bool { return errors.Cause(err) == ErrTruncated }

var ErrOversize = fmt.Errorf("protocol: frame longer than %d bytes", MaxFrameLength)
