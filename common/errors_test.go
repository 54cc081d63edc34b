package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestCheckIndex(t *testing.T) {
	if err := CheckIndex("model", 2, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, index := range []int{-1, 3, 100} {
		err := CheckIndex("model", index, 3)
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("CheckIndex(%d) = %v, want ErrIndexOutOfRange", index, err)
		}
		wrapped := fmt.Errorf("update transform: %w", err)
		var ie *IndexError
		if !errors.As(wrapped, &ie) {
			t.Fatalf("errors.As failed for %v", wrapped)
		}
		if ie.Index != index || ie.Len != 3 || ie.What != "model" {
			t.Errorf("got %+v, want index %d of 3 models", ie, index)
		}
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce(0, 0, 7, 9); got != 7 {
		t.Errorf("got %v, want 7", got)
	}
	if got := Coalesce("", ""); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
