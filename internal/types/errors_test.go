package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNotFoundTransit,
		Message: "transit record not found",
	}

	expected := "not_found_transit: transit record not found"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := NewAppError(ErrCodeInternalDB, "failed to query transit records", underlying)

	if !errors.Is(appErr, underlying) {
		t.Errorf("errors.Is should find the underlying error")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeConflictAlreadyDelivered, "already delivered", nil)
	wrapped := fmt.Errorf("deliver: %w", appErr)

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeConflictAlreadyDelivered {
		t.Errorf("extracted Code = %q, want %q", target.Code, ErrCodeConflictAlreadyDelivered)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidPreference, http.StatusBadRequest},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeNotFoundTransit, http.StatusNotFound},
		{ErrCodeNotFoundFriendRequest, http.StatusNotFound},
		{ErrCodeConflictNotReady, http.StatusConflict},
		{ErrCodeConflictAlreadyDelivered, http.StatusConflict},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeValidationMissingField, "missing", nil, map[string]any{"field": "letter_id"})
	copied := orig.WithDetails(map[string]any{"hint": "required"})

	if len(orig.Details) != 1 {
		t.Errorf("original details mutated: %v", orig.Details)
	}
	if copied.Details["field"] != "letter_id" || copied.Details["hint"] != "required" {
		t.Errorf("merged details = %v", copied.Details)
	}
}

func TestTaxonomyHelpers(t *testing.T) {
	validation := fmt.Errorf("create: %w", NewAppError(ErrCodeValidationMissingField, "letter_id is required", nil))
	notFound := NewAppError(ErrCodeNotFoundLetter, "letter not found", nil)
	notReady := NewAppError(ErrCodeConflictNotReady, "not ready", nil)
	delivered := NewAppError(ErrCodeConflictAlreadyDelivered, "delivered", nil)
	plain := errors.New("boom")

	if !IsValidation(validation) || IsValidation(notFound) {
		t.Error("IsValidation misclassified")
	}
	if !IsNotFound(notFound) || IsNotFound(plain) {
		t.Error("IsNotFound misclassified")
	}
	if !IsNotReady(notReady) || IsNotReady(delivered) {
		t.Error("IsNotReady misclassified")
	}
	if !IsAlreadyDelivered(delivered) || IsAlreadyDelivered(notReady) {
		t.Error("IsAlreadyDelivered misclassified")
	}
	if CodeOf(plain) != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", CodeOf(plain))
	}
}

func TestLetterTypeValid(t *testing.T) {
	for _, lt := range []LetterType{LetterTypeFriendRequest, LetterTypeRegular, LetterTypeRandomMatch} {
		if !lt.Valid() {
			t.Errorf("%q should be valid", lt)
		}
	}
	if LetterType("postcard").Valid() {
		t.Error("unknown letter type should be invalid")
	}
}
