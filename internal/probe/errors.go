package probe

import (
	"errors"
	"fmt"
)

var (
	// ErrToolMissing means the ffprobe binary could not be found.
	ErrToolMissing = errors.New("ffprobe not found")
	// ErrToolFailure means ffprobe ran but failed or produced unusable output.
	ErrToolFailure = errors.New("ffprobe failed")
)

// ErrorKind distinguishes probe failures.
type ErrorKind int

const (
	ToolMissing ErrorKind = iota + 1
	ToolFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ToolMissing:
		return "tool missing"
	case ToolFailure:
		return "tool failure"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ProbeError is returned by Probe. It matches ErrToolMissing or
// ErrToolFailure with errors.Is, depending on Kind.
type ProbeError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *ProbeError) Is(target error) bool {
	switch target {
	case ErrToolMissing:
		return e.Kind == ToolMissing
	case ErrToolFailure:
		return e.Kind == ToolFailure
	}
	return false
}
