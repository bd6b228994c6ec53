package assert

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestLength(t *testing.T) {
	Length("abcd", 4)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for wrong length")
		}
	}()
	Length("abc", 4)
}

func TestULID(t *testing.T) {
	ULID(ulid.Make().String())

	defer func() {
		if recover() == nil {
			t.Error("expected panic for short id")
		}
	}()
	ULID("req-1")
}
