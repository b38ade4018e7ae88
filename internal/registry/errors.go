package registry

import (
	"errors"
	"fmt"

	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

var (
	// ErrInvalidArgument is returned for empty input or a zero-capacity buffer.
	ErrInvalidArgument = errors.New("registry: invalid argument")

	// ErrInvalidEncoding is returned when submitted bytes are not valid UTF-8.
	ErrInvalidEncoding = errors.New("registry: invalid utf-8")

	// ErrNotFound is returned when an index does not address an entry.
	ErrNotFound = errors.New("registry: entry not found")

	// ErrBufferTooSmall is returned when an entry does not fit the caller's buffer.
	ErrBufferTooSmall = errors.New("registry: buffer too small")
)

// UnknownCodeError is returned when a guest reports a negative code outside
// the documented set.
type UnknownCodeError struct {
	Operation string
	Code      int32
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("registry: unknown result code %d from %s", e.Code, e.Operation)
}

// SubmitCode converts a Submit result to the submit_memory return value.
func SubmitCode(index uint32, err error) int32 {
	switch {
	case err == nil:
		return int32(index)
	case errors.Is(err, ErrInvalidEncoding):
		return protocol.SubmitInvalidEncoding
	default:
		return protocol.SubmitInvalidArgument
	}
}

// SubmitError converts a submit_memory return value back to an index or error.
func SubmitError(code int32) (uint32, error) {
	switch {
	case code >= 0:
		return uint32(code), nil
	case code == protocol.SubmitInvalidArgument:
		return 0, ErrInvalidArgument
	case code == protocol.SubmitInvalidEncoding:
		return 0, ErrInvalidEncoding
	default:
		return 0, &UnknownCodeError{Operation: protocol.ExportSubmit, Code: code}
	}
}

// ReadCode converts a Read or Len result to the get_memory_by_index or
// get_memory_len return value.
func ReadCode(n int, err error) int32 {
	switch {
	case err == nil:
		return int32(n)
	case errors.Is(err, ErrNotFound):
		return protocol.ReadNotFound
	case errors.Is(err, ErrBufferTooSmall):
		return protocol.ReadBufferTooSmall
	default:
		return protocol.ReadInvalidArgument
	}
}

// ReadError converts a get_memory_by_index or get_memory_len return value
// back to a byte count or error.
func ReadError(operation string, code int32) (int, error) {
	switch {
	case code >= 0:
		return int(code), nil
	case code == protocol.ReadInvalidArgument:
		return 0, ErrInvalidArgument
	case code == protocol.ReadNotFound:
		return 0, ErrNotFound
	case code == protocol.ReadBufferTooSmall:
		return 0, ErrBufferTooSmall
	default:
		return 0, &UnknownCodeError{Operation: operation, Code: code}
	}
}
