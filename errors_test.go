package authsession

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{err: nil, want: KindUnknown},
		{err: ErrCredentialInvalid, want: KindCredentialInvalid},
		{err: ErrTokenInvalid, want: KindTokenInvalid},
		{err: ErrAccountDisabled, want: KindAccountDisabled},
		{err: ErrNotFound, want: KindNotFound},
		{err: ErrServerInvariant, want: KindServerInvariant},
		{err: fmt.Errorf("%w: dial tcp", ErrStoreUnavailable), want: KindServerInvariant},
		{err: &RateLimitError{Err: ErrLoginRateLimited, RetryAfter: time.Second}, want: KindRateLimited},
		{err: ErrAccountExists, want: KindInvalidInput},
		{err: fmt.Errorf("%w: malformed email", ErrInvalidRequest), want: KindInvalidInput},
		{err: errors.New("something else"), want: KindServerInvariant},
	}

	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("login: %w", &RateLimitError{Err: ErrLoginRateLimited, RetryAfter: 42 * time.Second})
	d, ok := RetryAfter(err)
	if !ok || d != 42*time.Second {
		t.Fatalf("unexpected retry hint %v (%v)", d, ok)
	}
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatal("expected the sentinel to stay matchable")
	}
	if _, ok := RetryAfter(ErrTokenInvalid); ok {
		t.Fatal("non rate-limit error must not carry a hint")
	}
}
