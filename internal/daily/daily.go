// Package daily derives the deterministic "root of the day" seed.
// Every player requesting the daily round on the same date gets the same
// letters, without storing anything.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns HMAC-SHA256(salt, YYYY-MM-DD) folded to an int64.
func Seed(date time.Time, salt string) int64 {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// first 8 bytes; the sign bit is cleared so seeds are non-negative
	return int64(binary.BigEndian.Uint64(sum[:8]) >> 1)
}

// Rand returns a random source seeded for date.
func Rand(date time.Time, salt string) *rand.Rand {
	return rand.New(rand.NewSource(Seed(date, salt)))
}
