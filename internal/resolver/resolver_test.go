package resolver

import (
	"context"
	"errors"
	"testing"

	apperrors "excel-mcp/internal/errors"
)

type columnStub struct {
	cells []string
	err   error
	calls int
}

func (c *columnStub) ReadColumn(ctx context.Context, sheet, column string) ([]string, error) {
	c.calls++
	return c.cells, c.err
}

func TestResolveAnchorRow(t *testing.T) {
	stub := &columnStub{cells: []string{"", "", "12/20", "12/21"}}

	tests := []struct {
		name      string
		reference string
		offset    int
		found     int
		anchor    int
	}{
		{"latest", "latest", 0, 4, 4},
		{"empty means latest", "", 0, 4, 4},
		{"explicit", "12/20", 0, 3, 3},
		{"explicit with offset", "12/20", 1, 3, 4},
		{"trimmed", "  12/21 ", 1, 4, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ResolveAnchorRow(context.Background(), stub, "December", "C", tt.reference, tt.offset)
			if err != nil {
				t.Fatalf("ResolveAnchorRow() error = %v", err)
			}
			if res.FoundRow != tt.found || res.AnchorRow != tt.anchor {
				t.Errorf("got %+v, want found %d anchor %d", res, tt.found, tt.anchor)
			}
		})
	}
}

func TestResolveMostRecentDuplicate(t *testing.T) {
	stub := &columnStub{cells: []string{"Date", "12/20", "12/21", "12/20 ", "12/22"}}
	res, err := ResolveAnchorRow(context.Background(), stub, "December", "C", "12/20", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.FoundRow != 4 {
		t.Errorf("FoundRow = %d, want 4", res.FoundRow)
	}
}

func TestResolveCaseSensitive(t *testing.T) {
	stub := &columnStub{cells: []string{"Open", "open"}}
	res, err := ResolveAnchorRow(context.Background(), stub, "S", "A", "Open", 0)
	if err != nil || res.FoundRow != 1 {
		t.Errorf("got %+v, %v; want row 1", res, err)
	}
}

func TestResolveNotFound(t *testing.T) {
	tests := []struct {
		name      string
		cells     []string
		reference string
	}{
		{"no match", []string{"12/20"}, "1/5"},
		{"empty column", nil, "latest"},
		{"blank column", []string{"", " "}, ""},
		{"no date parsing", []string{"2024-12-20"}, "12/20/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveAnchorRow(context.Background(), &columnStub{cells: tt.cells}, "S", "C", tt.reference, 0)
			if apperrors.Kind(err) != apperrors.KindNotFound {
				t.Errorf("expected NotFound, got %v", err)
			}
		})
	}
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	stub := &columnStub{err: apperrors.NewStoreError("readColumn", 401, "expired", apperrors.ErrUnauthorized)}
	_, err := ResolveAnchorRow(context.Background(), stub, "S", "C", "latest", 0)
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("expected Unauthorized, got %v", err)
	}
}

func TestResolveValidatesInput(t *testing.T) {
	stub := &columnStub{cells: []string{"x"}}
	if _, err := ResolveAnchorRow(context.Background(), stub, "", "C", "x", 0); apperrors.Kind(err) != apperrors.KindValidation {
		t.Errorf("blank sheet: %v", err)
	}
	if _, err := ResolveAnchorRow(context.Background(), stub, "S", "C1", "x", 0); apperrors.Kind(err) != apperrors.KindValidation {
		t.Errorf("bad column: %v", err)
	}
	if _, err := ResolveAnchorRow(context.Background(), stub, "S", "C", "x", -2); apperrors.Kind(err) != apperrors.KindValidation {
		t.Errorf("offset above row 1: %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("validation failures should not read the column, calls = %d", stub.calls)
	}
}

func TestEndOfData(t *testing.T) {
	if got := EndOfData(nil); got != 1 {
		t.Errorf("EndOfData(nil) = %d, want 1", got)
	}
	if got := EndOfData([]string{"a", "", "b", ""}); got != 4 {
		t.Errorf("EndOfData = %d, want 4", got)
	}
}

func TestResolveOrEnd(t *testing.T) {
	stub := &columnStub{cells: []string{"Date", "12/20", "12/21", ""}}

	res, fallback, err := ResolveOrEnd(context.Background(), stub, "December", "C", "12/20", 1)
	if err != nil || fallback || res.AnchorRow != 3 {
		t.Errorf("match: %+v fallback=%v err=%v", res, fallback, err)
	}

	res, fallback, err = ResolveOrEnd(context.Background(), stub, "December", "C", "12/25", 1)
	if err != nil || !fallback || res.AnchorRow != 4 || res.FoundRow != 0 {
		t.Errorf("fallback: %+v fallback=%v err=%v", res, fallback, err)
	}

	res, fallback, err = ResolveOrEnd(context.Background(), &columnStub{}, "January", "C", "latest", 1)
	if err != nil || !fallback || res.AnchorRow != 1 {
		t.Errorf("empty column: %+v fallback=%v err=%v", res, fallback, err)
	}

	_, _, err = ResolveOrEnd(context.Background(), &columnStub{err: apperrors.ErrRemoteTimeout}, "January", "C", "latest", 1)
	if apperrors.Kind(err) != apperrors.KindRemoteTimeout {
		t.Errorf("expected store error to propagate, got %v", err)
	}
}
