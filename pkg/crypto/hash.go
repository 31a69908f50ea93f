package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxDigestLength - длина hex SHA-256
const MaxDigestLength = sha256.Size * 2

// Digest возвращает hex(SHA-256(salt || value)), обрезанный до length символов
func Digest(salt, value string, length int) string {
	sum := sha256.Sum256([]byte(salt + value))
	h := hex.EncodeToString(sum[:])
	if length > 0 && length < len(h) {
		return h[:length]
	}
	return h
}
