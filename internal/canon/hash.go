package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// The version suffix allows a future algorithm migration.
const (
	DomainTrace = "rpcsim/trace/v1"
	DomainCall  = "rpcsim/call/v1"
)

// SumWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func SumWithDomain(domain string, data []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashWithDomain is SumWithDomain rendered as lowercase hex.
func HashWithDomain(domain string, data []byte) string {
	sum := SumWithDomain(domain, data)
	return hex.EncodeToString(sum[:])
}

// Digest canonicalizes v and hashes it under domain.
func Digest(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return HashWithDomain(domain, data), nil
}
