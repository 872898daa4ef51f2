package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainImage = "kiosk/image/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the domain-separated hex digest of data.
func ContentHash(domain string, data []byte) string {
	return hashWithDomain(domain, data)
}

// ImageID returns the deterministic image id for a media URL.
// The same URL always maps to the same images row, so media reported by
// many entities is stored once.
func ImageID(url string) string {
	return KindImage.Prefix() + "_" + hashWithDomain(DomainImage, []byte(url))[:32]
}
