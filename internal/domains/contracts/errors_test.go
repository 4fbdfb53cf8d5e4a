package contracts

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapCategorizedErrorKeepsInnerError(t *testing.T) {
	inner := fmt.Errorf("request failed: %w", ErrConflict)
	wrapped := WrapCategorizedError(ErrorCategoryNetwork, inner)

	if !errors.Is(wrapped, ErrConflict) {
		t.Fatalf("wrapped error must still match sentinel, got %v", wrapped)
	}
	if got := ErrorCategory(wrapped); got != ErrorCategoryNetwork {
		t.Fatalf("unexpected category: got=%q want=%q", got, ErrorCategoryNetwork)
	}
}

func TestWrapCategorizedErrorDoesNotDoubleWrap(t *testing.T) {
	wrapped := WrapCategorizedError(ErrorCategoryStorage, errors.New("disk full"))
	rewrapped := WrapCategorizedError(ErrorCategoryNetwork, wrapped)

	var ce *CategorizedError
	if !errors.As(rewrapped, &ce) {
		t.Fatal("expected CategorizedError")
	}
	if ce.Category != ErrorCategoryStorage {
		t.Fatalf("rewrap must keep original category, got %q", ce.Category)
	}
	if _, ok := ce.Err.(*CategorizedError); ok {
		t.Fatal("inner error must not be a CategorizedError")
	}
}

func TestErrorCategoryDefaultsToAPI(t *testing.T) {
	if got := ErrorCategory(errors.New("plain")); got != ErrorCategoryAPI {
		t.Fatalf("unexpected category: %q", got)
	}
	if got := ErrorCategory(fmt.Errorf("call: %w", ErrNetwork)); got != ErrorCategoryNetwork {
		t.Fatalf("network sentinel must categorize as network, got %q", got)
	}
}

func TestFailureCodeRoundTrip(t *testing.T) {
	cases := []error{
		ErrDuplicateRequest,
		ErrInvalidTransition,
		ErrAlreadyBlocked,
		ErrNotFound,
		ErrConflict,
		ErrValidation,
	}
	for _, want := range cases {
		code := FailureCode(want)
		got := FailureFromCode(code)
		if !errors.Is(got, want) {
			t.Fatalf("code %q mapped to %v, want %v", code, got, want)
		}
	}
}

func TestFailureFromCodeAlreadyProcessed(t *testing.T) {
	if !errors.Is(FailureFromCode("AlreadyProcessed"), ErrInvalidTransition) {
		t.Fatal("AlreadyProcessed must map to ErrInvalidTransition")
	}
}

func TestFailureFromCodeUnknownIsNil(t *testing.T) {
	if err := FailureFromCode("SomethingElse"); err != nil {
		t.Fatalf("unknown code must map to nil, got %v", err)
	}
}
