package fetcherr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKindOf_WrappedChain(t *testing.T) {
	base := Network("fetch shops", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("stage shops: %w", base)

	if got := KindOf(wrapped); got != KindNetwork {
		t.Fatalf("KindOf=%v want network", got)
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatalf("expected underlying error to be reachable")
	}
	if !Retryable(wrapped) {
		t.Fatalf("network errors should be retryable")
	}
}

func TestKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
		name string
	}{
		{Decode("decode", errors.New("bad json")), KindDecode, "decode"},
		{Empty("stations"), KindEmptyResult, "empty_result"},
		{errors.New("plain"), KindUnknown, "unknown"},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.kind {
			t.Fatalf("KindOf(%v)=%v want %v", c.err, got, c.kind)
		}
		if c.kind.String() != c.name {
			t.Fatalf("String=%q want %q", c.kind.String(), c.name)
		}
		if Retryable(c.err) {
			t.Fatalf("%v should not be retryable", c.err)
		}
	}
}
