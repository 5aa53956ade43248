package store

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/roach88/keycond/internal/ir"
)

func posInf() float64 { return math.Inf(1) }

func TestReadTable_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	setupTable(t, s)

	got, err := s.ReadTable(context.Background(), "hits")
	if err != nil {
		t.Fatalf("ReadTable() failed: %v", err)
	}
	if !reflect.DeepEqual(got, testTable()) {
		t.Errorf("ReadTable() = %+v\nwant %+v", got, testTable())
	}
}

func TestReadTable_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadTable(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadTable() = %v, want ErrNotFound", err)
	}
}

func TestReadParts_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	setupTable(t, s)

	want := createTestPart(t, "p1", math.MaxUint64-1)
	if err := s.WritePart(ctx, "hits", want); err != nil {
		t.Fatalf("WritePart() failed: %v", err)
	}

	parts, err := s.ReadParts(ctx, "hits", testLayout())
	if err != nil {
		t.Fatalf("ReadParts() failed: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("ReadParts() returned %d parts, want 1", len(parts))
	}
	if !reflect.DeepEqual(parts[0], want) {
		t.Errorf("ReadParts()[0] = %+v\nwant %+v", parts[0], want)
	}
}

func TestReadParts_OrderedByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	setupTable(t, s)

	for _, name := range []string{"p_2", "p_10", "P_1"} {
		if err := s.WritePart(ctx, "hits", createTestPart(t, name, 1)); err != nil {
			t.Fatalf("WritePart(%s) failed: %v", name, err)
		}
	}

	parts, err := s.ReadParts(ctx, "hits", testLayout())
	if err != nil {
		t.Fatalf("ReadParts() failed: %v", err)
	}
	var names []string
	for _, p := range parts {
		names = append(names, p.Name)
	}
	want := []string{"P_1", "p_10", "p_2"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("part order = %v, want %v", names, want)
	}
}

func TestReadParts_EmptyTable(t *testing.T) {
	s := createTestStore(t)
	setupTable(t, s)

	parts, err := s.ReadParts(context.Background(), "hits", testLayout())
	if err != nil {
		t.Fatalf("ReadParts() failed: %v", err)
	}
	if parts == nil || len(parts) != 0 {
		t.Errorf("ReadParts() = %#v, want empty non-nil slice", parts)
	}
}

func TestReadParts_LayoutMismatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	setupTable(t, s)

	if err := s.WritePart(ctx, "hits", createTestPart(t, "p1", 1)); err != nil {
		t.Fatalf("WritePart() failed: %v", err)
	}

	layout := testLayout()
	layout.KeyTypes = layout.KeyTypes[:1]
	if _, err := s.ReadParts(ctx, "hits", layout); err == nil {
		t.Error("ReadParts() with a shorter key should fail")
	}

	layout = testLayout()
	layout.ColumnTypes = map[string]ir.Type{}
	if _, err := s.ReadParts(ctx, "hits", layout); err == nil {
		t.Error("ReadParts() without the min/max column type should fail")
	}
}

func TestReadPart(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	setupTable(t, s)

	want := createTestPart(t, "p1", 9)
	if err := s.WritePart(ctx, "hits", want); err != nil {
		t.Fatalf("WritePart() failed: %v", err)
	}

	got, err := s.ReadPart(ctx, "hits", "p1", testLayout())
	if err != nil {
		t.Fatalf("ReadPart() failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadPart() = %+v\nwant %+v", got, want)
	}

	_, err = s.ReadPart(ctx, "hits", "p2", testLayout())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadPart(p2) = %v, want ErrNotFound", err)
	}
}
