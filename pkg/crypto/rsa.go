package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"
)

// EncryptValue шифрует строку RSA-OAEP (SHA-256) и возвращает base64.
// Длинные значения шифруются блоками; random == nil означает crypto/rand.
func EncryptValue(pub *rsa.PublicKey, plaintext string, random io.Reader) (string, error) {
	if random == nil {
		random = rand.Reader
	}

	chunk := pub.Size() - 2*sha256.Size - 2
	if chunk <= 0 {
		return "", fmt.Errorf("rsa key too small for OAEP: %d bytes", pub.Size())
	}

	msg := []byte(plaintext)
	out := make([]byte, 0, pub.Size()*(len(msg)/chunk+1))
	for start := 0; start == 0 || start < len(msg); start += chunk {
		end := start + chunk
		if end > len(msg) {
			end = len(msg)
		}
		block, err := rsa.EncryptOAEP(sha256.New(), random, pub, msg[start:end], nil)
		if err != nil {
			return "", fmt.Errorf("rsa encrypt: %w", err)
		}
		out = append(out, block...)
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptValue расшифровывает результат EncryptValue
func DecryptValue(priv *rsa.PrivateKey, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("rsa decrypt: invalid base64: %w", err)
	}

	size := priv.Size()
	if len(data) == 0 || len(data)%size != 0 {
		return "", fmt.Errorf("rsa decrypt: ciphertext length %d is not a multiple of %d", len(data), size)
	}

	var out []byte
	for start := 0; start < len(data); start += size {
		block, err := rsa.DecryptOAEP(sha256.New(), nil, priv, data[start:start+size], nil)
		if err != nil {
			return "", fmt.Errorf("rsa decrypt: %w", err)
		}
		out = append(out, block...)
	}
	return string(out), nil
}

// DeterministicReader - детерминированный поток байт HMAC-SHA256(pad, value || counter).
// Одинаковые pad и value дают одинаковый шифротекст.
type DeterministicReader struct {
	pad     []byte
	value   []byte
	counter uint64
	buf     []byte
}

// NewDeterministicReader создает поток для пары (pad, value)
func NewDeterministicReader(pad, value string) *DeterministicReader {
	return &DeterministicReader{pad: []byte(pad), value: []byte(value)}
}

// Read заполняет p следующими байтами потока
func (r *DeterministicReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			h := hmac.New(sha256.New, r.pad)
			h.Write(r.value)
			var ctr [8]byte
			binary.BigEndian.PutUint64(ctr[:], r.counter)
			h.Write(ctr[:])
			r.counter++
			r.buf = h.Sum(nil)
		}
		c := copy(p[n:], r.buf)
		r.buf = r.buf[c:]
		n += c
	}
	return n, nil
}

// readKeyMaterial возвращает PEM: либо сам текст ключа, либо содержимое файла
func readKeyMaterial(source string) ([]byte, error) {
	if strings.Contains(source, "-----BEGIN") {
		return []byte(source), nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return data, nil
}

// LoadPublicKey загружает открытый ключ RSA (PKIX или PKCS#1) из PEM-текста или файла
func LoadPublicKey(source string) (*rsa.PublicKey, error) {
	data, err := readKeyMaterial(source)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in public key")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA")
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported public key PEM type: %s", block.Type)
	}
}

// LoadPrivateKey загружает закрытый ключ RSA (PKCS#1 или PKCS#8) из PEM-текста или файла
func LoadPrivateKey(source string) (*rsa.PrivateKey, error) {
	data, err := readKeyMaterial(source)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("unsupported private key PEM type: %s", block.Type)
	}
}

// EncodePublicKey кодирует открытый ключ в PEM (PKIX)
func EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// EncodePrivateKey кодирует закрытый ключ в PEM (PKCS#1)
func EncodePrivateKey(priv *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}))
}
