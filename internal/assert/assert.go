// Package assert panics on states that can only come from a programming error
package assert

import (
	"fmt"
)

// ULIDLength is the length of a ULID in its canonical text form
const ULIDLength = 26

func Length(value string, expected int) {
	if len(value) != expected {
		msg := fmt.Sprintf("assert.Length expected %d actual %d", expected, len(value))
		panic(msg)
	}
}

// ULID panics unless value has the shape of a canonical ULID
func ULID(value string) {
	Length(value, ULIDLength)
}
