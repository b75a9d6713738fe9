package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints. The version suffix allows the
// encoding to change without colliding with old fingerprints.
const (
	DomainModel = "relinq/model/v1"
	DomainQuery = "relinq/query/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex. The null
// separator keeps domain and data from running together.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical encoding of v under domain.
func Fingerprint(domain string, v Value) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

// QueryFingerprint identifies query text. The text is NFC normalized, so
// equivalent spellings of the same characters share a fingerprint.
func QueryFingerprint(text string) string {
	fp, err := Fingerprint(DomainQuery, String(text))
	if err != nil {
		panic(err) // a String always encodes
	}
	return fp
}
