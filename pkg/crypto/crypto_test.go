package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func privateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		testKey = k
	})
	return testKey
}

func TestRSA_RoundTrip(t *testing.T) {
	priv := privateKey(t)

	values := []string{
		"",
		"hello",
		"Привет, мир",
		strings.Repeat("x", 1000), // несколько OAEP-блоков
	}

	readers := map[string]func(v string) *DeterministicReader{
		"random": func(string) *DeterministicReader { return nil },
		"fixed":  func(v string) *DeterministicReader { return NewDeterministicReader("pad", v) },
		"date":   func(v string) *DeterministicReader { return NewDeterministicReader("2024-01-15", v) },
	}

	for name, mk := range readers {
		for _, v := range values {
			var ct string
			var err error
			if r := mk(v); r != nil {
				ct, err = EncryptValue(&priv.PublicKey, v, r)
			} else {
				ct, err = EncryptValue(&priv.PublicKey, v, nil)
			}
			if err != nil {
				t.Fatalf("%s: EncryptValue: %v", name, err)
			}
			got, err := DecryptValue(priv, ct)
			if err != nil {
				t.Fatalf("%s: DecryptValue: %v", name, err)
			}
			if got != v {
				t.Errorf("%s: round trip mismatch for %q", name, v)
			}
		}
	}
}

func TestRSA_DeterministicPad(t *testing.T) {
	pub := &privateKey(t).PublicKey

	a, err := EncryptValue(pub, "secret", NewDeterministicReader("pad", "secret"))
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	b, _ := EncryptValue(pub, "secret", NewDeterministicReader("pad", "secret"))
	if a != b {
		t.Error("same pad and value must give the same ciphertext")
	}

	c, _ := EncryptValue(pub, "secret", NewDeterministicReader("other", "secret"))
	if a == c {
		t.Error("different pad should give a different ciphertext")
	}

	r1, _ := EncryptValue(pub, "secret", nil)
	r2, _ := EncryptValue(pub, "secret", nil)
	if r1 == r2 {
		t.Error("random OAEP should not repeat")
	}
}

func TestDecryptValue_Invalid(t *testing.T) {
	priv := privateKey(t)
	if _, err := DecryptValue(priv, "not base64!"); err == nil {
		t.Error("expected base64 error")
	}
	if _, err := DecryptValue(priv, "YWJj"); err == nil {
		t.Error("expected length error")
	}
}

func TestLoadKeys(t *testing.T) {
	priv := privateKey(t)

	pubPEM, err := EncodePublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("EncodePublicKey: %v", err)
	}
	privPEM := EncodePrivateKey(priv)

	pub, err := LoadPublicKey(pubPEM)
	if err != nil {
		t.Fatalf("LoadPublicKey from text: %v", err)
	}
	if pub.N.Cmp(priv.N) != 0 {
		t.Error("public key mismatch")
	}

	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, []byte(privPEM), 0600); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("LoadPrivateKey from file: %v", err)
	}
	if loaded.D.Cmp(priv.D) != 0 {
		t.Error("private key mismatch")
	}

	if _, err := LoadPublicKey(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadPrivateKey(pubPEM); err == nil {
		t.Error("expected error for wrong PEM type")
	}
}

func TestDigest(t *testing.T) {
	// sha256("abc") = ba7816bf...
	if got := Digest("", "abc", 8); got != "ba7816bf" {
		t.Errorf("Digest = %s", got)
	}
	if got := Digest("a", "bc", 64); got != Digest("", "abc", 64) {
		t.Error("salt is prepended to the value")
	}
	if len(Digest("s", "v", 100)) != MaxDigestLength {
		t.Error("length is capped at the full digest")
	}
}

func TestSealOpen(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	runID := uuid.NewString()
	plaintext := []byte("cleaned table")

	blob, err := Seal(key, plaintext, runID)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	gotID, got, err := Open(key, blob)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gotID != runID || !bytes.Equal(got, plaintext) {
		t.Error("Open mismatch")
	}

	wrong := bytes.Repeat([]byte{8}, 32)
	if _, _, err := Open(wrong, blob); err == nil {
		t.Error("expected authentication error")
	}
	if _, err := Seal(key[:16], plaintext, runID); err == nil {
		t.Error("expected key length error")
	}
	if _, err := Seal(key, plaintext, "not-a-uuid"); err == nil {
		t.Error("expected uuid error")
	}
	if _, _, err := Open(key, blob[:10]); err == nil {
		t.Error("expected short blob error")
	}
}
