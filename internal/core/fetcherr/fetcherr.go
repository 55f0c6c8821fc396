// Package fetcherr classifies failures of remote dataset and weather calls.
package fetcherr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork covers transport failures, timeouts and non-2xx responses.
	KindNetwork
	// KindDecode covers payloads that are not the expected JSON/GeoJSON.
	KindDecode
	// KindEmptyResult covers well-formed payloads without usable features.
	KindEmptyResult
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Network(op string, err error) error { return &Error{Kind: KindNetwork, Op: op, Err: err} }

func Decode(op string, err error) error { return &Error{Kind: KindDecode, Op: op, Err: err} }

func Empty(op string) error { return &Error{Kind: KindEmptyResult, Op: op} }

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Retryable reports whether a retry could plausibly succeed.
func Retryable(err error) bool {
	return KindOf(err) == KindNetwork
}
