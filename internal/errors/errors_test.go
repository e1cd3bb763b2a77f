package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("open_date", nil, "required"), KindValidation},
		{"shape", &ShapeError{Address: "A1:C2", WantRows: 2, WantColumns: 3, GotRows: 3, GotColumns: 3}, KindShapeMismatch},
		{"store unauthorized", NewStoreError("readColumn", 401, "token rejected", ErrUnauthorized), KindUnauthorized},
		{"wrapped timeout", Wrap(NewStoreError("writeRange", 0, "deadline", ErrRemoteTimeout), "trade 2"), KindRemoteTimeout},
		{"not found", NotFoundf("value %q in column %s", "12/20", "C"), KindNotFound},
		{"conflict", fmt.Errorf("write: %w", ErrConflict), KindConflict},
		{"unknown", context.Canceled, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStoreErrorMessage(t *testing.T) {
	err := NewStoreError("writeRange", 503, "service busy", ErrRemoteUnavailable)
	want := "store error [writeRange] HTTP 503: service busy"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !Is(err, ErrRemoteUnavailable) {
		t.Error("expected StoreError to unwrap to ErrRemoteUnavailable")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}
