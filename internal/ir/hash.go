package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for view digests. The version suffix enables a future
// algorithm migration.
const DomainView = "offsync/view/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ViewDigest returns a content hash of an ordered record list. It is
// computed over the canonical JSON, so two replicas showing the same
// records in the same order have the same digest regardless of key order.
func ViewDigest(records []Object) (string, error) {
	arr := make(Array, len(records))
	for i, r := range records {
		arr[i] = r
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("ViewDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainView, canonical), nil
}
