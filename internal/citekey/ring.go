package citekey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRingExhausted is returned when every collision letter for one
// identifier root is in use.
var ErrRingExhausted = errors.New("collision ring exhausted")

// Ring is the cyclic alphabet of collision suffix letters.
// Limit is the number of distinct consumed letters at which Next gives up.
type Ring struct {
	Letters string
	Limit   int
}

// DefaultRing cycles a..y and fails once 24 letters are consumed.
var DefaultRing = Ring{Letters: "abcdefghijklmnopqrstuvwxy", Limit: 24}

// NextLetter resolves a collision on DefaultRing.
func NextLetter(consumed string) (byte, error) {
	return DefaultRing.Next(consumed)
}

// Next returns the first ring letter not in consumed, scanning forward
// cyclically from the letter after the last character of consumed. When
// that character is outside the ring (a page digit, or z) the scan starts
// at the first letter.
func (r Ring) Next(consumed string) (byte, error) {
	n := len(r.Letters)
	if n == 0 {
		return 0, fmt.Errorf("%w: empty ring", ErrRingExhausted)
	}

	distinct := 0
	for i := 0; i < n; i++ {
		if strings.IndexByte(consumed, r.Letters[i]) >= 0 {
			distinct++
		}
	}
	if distinct >= r.Limit || distinct >= n {
		return 0, fmt.Errorf("%w: %d of %d letters consumed (%q)", ErrRingExhausted, distinct, n, consumed)
	}

	start := 0
	if len(consumed) > 0 {
		if i := strings.IndexByte(r.Letters, consumed[len(consumed)-1]); i >= 0 {
			start = i + 1
		}
	}
	for k := 0; k < n; k++ {
		c := r.Letters[(start+k)%n]
		if strings.IndexByte(consumed, c) < 0 {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrRingExhausted, consumed)
}
