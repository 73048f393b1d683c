package db

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	orderNumberPrefix = "VAL"
	suffixAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength      = 6
)

// newOrderNumber builds a VAL-YYYYMMDD-XXXXXX number: UTC date plus a
// random six-character suffix. Uniqueness is enforced by the database; a
// collision is retried once by the caller.
func newOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate order number suffix: %w", err)
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.UTC().Format("20060102"), buf), nil
}
