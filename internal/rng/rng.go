// Package rng creates the seeded random streams battles draw from.
//
// Every stream is a ChaCha8 generator whose key is a BLAKE2b-256 digest of
// the seed, so nearby seeds give unrelated streams. Substreams mix in a
// battle index, which lets battles run in parallel while each one stays
// reproducible from the batch seed alone.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"golang.org/x/crypto/blake2b"
)

const (
	domainBatch  = "tunnelfight/batch"
	domainBattle = "tunnelfight/battle"
)

func key(domain string, values ...uint64) [32]byte {
	buf := make([]byte, 0, len(domain)+8*len(values))
	buf = append(buf, domain...)
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	return blake2b.Sum256(buf)
}

// New returns the stream for a batch seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewChaCha8(key(domainBatch, seed)))
}

// Substream returns the independent stream for battle index within the
// batch identified by seed.
func Substream(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewChaCha8(key(domainBattle, seed, uint64(index))))
}

// NewSeed draws a fresh seed from the operating system's entropy source.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Fingerprint returns a short stable hex digest of data, used to group
// reports for the same encounter text.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("%x", sum[:16])
}
