// Package gameid generates sortable identifiers for game runs.
//
// IDs are UUIDv7 values encoded as 26-character Crockford base32, so they
// sort lexicographically by creation time and survive being used as file
// names, SQLite keys and log fields without escaping.
package gameid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Crockford's base32 alphabet, lowercased. No i, l, o or u.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// New returns a fresh game ID.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does, which is fatal anyway.
		panic("gameid: " + err.Error())
	}
	return encode(id)
}

// Valid reports whether s looks like an ID produced by New.
func Valid(s string) bool {
	if len(s) != 26 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	// 128 bits into 26 base32 chars leaves 2 spare bits, so the first
	// character can only encode 3 bits worth of values.
	return s[0] <= '7'
}

// encode packs the 128-bit UUID into 26 base32 characters, most significant
// bits first, matching the TypeID suffix encoding.
func encode(id uuid.UUID) string {
	var out [26]byte
	var acc uint64
	bits := 0
	pos := 25
	for i := 15; i >= 0; i-- {
		acc |= uint64(id[i]) << bits
		bits += 8
		for bits >= 5 && pos >= 0 {
			out[pos] = alphabet[acc&0x1f]
			acc >>= 5
			bits -= 5
			pos--
		}
	}
	for pos >= 0 {
		out[pos] = alphabet[acc&0x1f]
		acc >>= 5
		pos--
	}
	return string(out[:])
}

// Short returns the trailing 8 characters of an ID, for compact log output.
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// Must panics if s is not a valid game ID, and otherwise returns it.
func Must(s string) string {
	if !Valid(s) {
		panic(fmt.Sprintf("gameid: invalid id %q", s))
	}
	return s
}
