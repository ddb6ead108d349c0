package log

import (
	"context"
	"errors"
	"testing"
)

func TestLogFields_Builder(t *testing.T) {
	fields := NewFields().
		WithUser("u1").
		WithEntry("e1", "expense", "Dining", 42.5).
		WithError(errors.New("boom")).
		WithOperation(OpCreate).
		WithComponent(ComponentStorage)

	want := map[string]any{
		FieldUserID:    "u1",
		FieldEntryID:   "e1",
		FieldEntryType: "expense",
		FieldCategory:  "Dining",
		FieldAmount:    42.5,
		FieldError:     "boom",
		FieldOperation: OpCreate,
		FieldComponent: ComponentStorage,
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %v, want %v", k, fields[k], v)
		}
	}

	if got := len(fields.ToSlice()); got != len(fields)*2 {
		t.Errorf("ToSlice() length = %d, want %d", got, len(fields)*2)
	}
}

func TestLogFields_WithNilError(t *testing.T) {
	fields := NewFields().WithError(nil)
	if _, ok := fields[FieldError]; ok {
		t.Error("nil error must not add an error field")
	}
}

func TestFromContext_Fallback(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Logger == nil {
		t.Fatal("FromContext must always return a usable logger")
	}
	if logger.Component() != "unknown" {
		t.Errorf("fallback component = %q, want %q", logger.Component(), "unknown")
	}
}
