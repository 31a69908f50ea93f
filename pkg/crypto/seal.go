// Package crypto - криптографические примитивы очистки: RSA-OAEP для значений ячеек,
// соленый дайджест для хеширования и AES-256-GCM для выходных файлов.
//
// Формат зашифрованного файла (Seal):
//
//	[2B version][1B algorithm][16B run_uuid][12B nonce][...ciphertext]
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	headerVersion   = byte(0x01)
	headerVersionLo = byte(0x00)
	algoAES256GCM   = byte(0x01)

	nonceSize  = 12
	uuidSize   = 16
	headerSize = 2 + 1 + uuidSize + nonceSize
)

// Seal шифрует содержимое выходного файла ключом AES-256 (32 байта).
// runID - UUID запуска, сохраняется в заголовке открытым текстом.
func Seal(key, plaintext []byte, runID string) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("seal: key must be 32 bytes, got %d", len(key))
	}

	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("seal: invalid run id: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}

	out := make([]byte, 0, headerSize+len(plaintext)+gcm.Overhead())
	out = append(out, headerVersion, headerVersionLo, algoAES256GCM)
	out = append(out, id[:]...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open расшифровывает блоб, созданный Seal. Возвращает run id из заголовка.
func Open(key, blob []byte) (runID string, plaintext []byte, err error) {
	if len(key) != 32 {
		return "", nil, fmt.Errorf("open: key must be 32 bytes, got %d", len(key))
	}
	if len(blob) < headerSize {
		return "", nil, fmt.Errorf("open: blob too short: %d bytes", len(blob))
	}
	if blob[0] != headerVersion {
		return "", nil, fmt.Errorf("open: unsupported version: 0x%02x", blob[0])
	}
	if blob[2] != algoAES256GCM {
		return "", nil, fmt.Errorf("open: unsupported algorithm: 0x%02x", blob[2])
	}

	id, err := uuid.FromBytes(blob[3 : 3+uuidSize])
	if err != nil {
		return "", nil, fmt.Errorf("open: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", nil, fmt.Errorf("open: %w", err)
	}

	nonce := blob[3+uuidSize : headerSize]
	plaintext, err = gcm.Open(nil, nonce, blob[headerSize:], nil)
	if err != nil {
		return "", nil, fmt.Errorf("open: authentication failed (wrong key or corrupted data): %w", err)
	}
	return id.String(), plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
