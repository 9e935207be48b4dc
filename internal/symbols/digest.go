package symbols

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a fixed 256-bit hash of a method body.
type Digest [32]byte

// HashBody hashes the textual or IL form of a body.
func HashBody(content string) Digest {
	return Digest(sha256.Sum256([]byte(content)))
}

// Combine builds a hash over content and its parts in the given order.
func Combine(content Digest, parts ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range parts {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether the digest was never set.
func (d Digest) IsZero() bool { return d == Digest{} }

func (d Digest) String() string { return hex.EncodeToString(d[:8]) }
