package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

const (
	KeySize   = 16 // AES-128, embedded in the document as 32 hex digits
	NonceSize = 16
	TagSize   = 16

	// Suffix is appended to the original file name of each artifact.
	Suffix = ".aes"
)

var (
	ErrKeySize           = errors.New("encryption key must be 16 bytes")
	ErrMalformedArtifact = errors.New("malformed encrypted artifact")
)

// GenerateKey returns a fresh random key as lowercase hex.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// ParseKey decodes a hex key and checks its size.
func ParseKey(keyHex string) ([]byte, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

// Seal encrypts plain and lays the result out as nonce || tag || ciphertext.
func Seal(key, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plain, nil) // ciphertext || tag
	ct, tag := sealed[:len(plain)], sealed[len(plain):]

	out := make([]byte, 0, NonceSize+TagSize+len(plain))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// Open reverses Seal.
func Open(key, artifact []byte) ([]byte, error) {
	if len(artifact) < NonceSize+TagSize {
		return nil, ErrMalformedArtifact
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := artifact[:NonceSize]
	tag := artifact[NonceSize : NonceSize+TagSize]
	ct := artifact[NonceSize+TagSize:]

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	return plain, nil
}

// ArtifactName is the encrypted file name for an original media file.
func ArtifactName(original string) string {
	return filepath.Base(original) + Suffix
}

// MediaDir is the sibling folder holding the artifacts of outputPath.
func MediaDir(outputPath string) string {
	base := filepath.Base(outputPath)
	stem := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(filepath.Dir(outputPath), stem+"_media")
}

// EncryptFile writes <dir>/<name>.aes unless it already exists. created
// reports whether a new artifact was written. The write goes through a
// temporary file so an interrupted run never leaves a partial artifact
// that a later run would skip.
func EncryptFile(key []byte, src, dir string) (dst string, created bool, err error) {
	dst = filepath.Join(dir, ArtifactName(src))
	if _, err := os.Stat(dst); err == nil {
		return dst, false, nil
	}
	plain, err := os.ReadFile(src)
	if err != nil {
		return dst, false, fmt.Errorf("read %s: %w", filepath.Base(src), err)
	}
	artifact, err := Seal(key, plain)
	if err != nil {
		return dst, false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dst, false, err
	}
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return dst, false, err
	}
	if _, err := tmp.Write(artifact); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return dst, false, fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return dst, false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return dst, false, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return dst, false, err
	}
	return dst, true, nil
}

var documentKeyRe = regexp.MustCompile(`window\.ENC_KEY\s*=\s*["']([0-9a-fA-F]{32})["']`)

// KeyFromDocument extracts the key embedded in a previously built archive.
func KeyFromDocument(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	m := documentKeyRe.FindSubmatch(data)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}
