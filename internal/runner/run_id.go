package runner

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const runIDSuffixBytes = 6

// NewRunID returns a sortable run identifier: a pv- prefix, the UTC
// timestamp, and a random hex suffix.
func NewRunID() (string, error) {
	return NewRunIDWithRand(time.Now().UTC(), rand.Reader)
}

// NewRunIDWithRand is NewRunID with injectable time and randomness.
func NewRunIDWithRand(now time.Time, r io.Reader) (string, error) {
	if r == nil {
		return "", fmt.Errorf("random reader is nil")
	}
	buf := make([]byte, runIDSuffixBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return FormatRunID(now, hex.EncodeToString(buf)), nil
}

// FormatRunID renders the canonical run id form, e.g.
// pv-20260301T120000Z-a1b2c3.
func FormatRunID(now time.Time, suffix string) string {
	return "pv-" + now.UTC().Format("20060102T150405Z") + "-" + suffix
}
