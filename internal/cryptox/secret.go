package cryptox

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// SecretBytes is the entropy of a refresh secret: 64 bytes = 512 bits.
const SecretBytes = 64

// NewSecret returns a fresh URL-safe refresh secret together with the hash
// that is persisted in its place.
func NewSecret() (raw string, hash string, err error) {
	raw, err = common.MakeRandURLString(SecretBytes)
	if err != nil {
		return "", "", err
	}
	return raw, HashSecret(raw), nil
}

// HashSecret is the lookup key for a raw secret. The secret carries 512 bits
// of entropy, so an unsalted fast hash is sufficient and keeps lookups indexed.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
