package crypt

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	keyHex, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, keyHex, 32)
	key, err := ParseKey(keyHex)
	require.NoError(t, err)
	return key
}

func TestSealLayoutAndOpen(t *testing.T) {
	key := testKey(t)
	plain := []byte("0123456789")

	artifact, err := Seal(key, plain)
	require.NoError(t, err)
	assert.Len(t, artifact, 42)

	got, err := Open(key, artifact)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	other, err := Seal(key, plain)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(artifact[:NonceSize], other[:NonceSize]), "nonce must be random")
}

func TestOpenRejectsTampering(t *testing.T) {
	key := testKey(t)
	artifact, err := Seal(key, []byte("secret voice note"))
	require.NoError(t, err)

	artifact[len(artifact)-1] ^= 0xff
	_, err = Open(key, artifact)
	assert.ErrorIs(t, err, ErrMalformedArtifact)

	_, err = Open(key, make([]byte, 31))
	assert.ErrorIs(t, err, ErrMalformedArtifact)
}

func TestKeyValidation(t *testing.T) {
	_, err := ParseKey("abcd")
	assert.ErrorIs(t, err, ErrKeySize)
	_, err = ParseKey("zz")
	assert.Error(t, err)
	_, err = Seal(make([]byte, 32), []byte("x"))
	assert.ErrorIs(t, err, ErrKeySize)
}

func TestEncryptFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "IMG-20240305-WA0001.jpg")
	require.NoError(t, os.WriteFile(src, []byte("0123456789"), 0o644))
	out := MediaDir(filepath.Join(dir, "chat.html"))
	assert.Equal(t, filepath.Join(dir, "chat_media"), out)

	key := testKey(t)
	dst, created, err := EncryptFile(key, src, out)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, filepath.Join(out, "IMG-20240305-WA0001.jpg.aes"), dst)

	first, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Len(t, first, 42)
	info, err := os.Stat(dst)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, created, err = EncryptFile(key, src, out)
	require.NoError(t, err)
	assert.False(t, created)

	second, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	info2, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), info2.ModTime())

	plain, err := Open(key, second)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), plain)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestEncryptFileIsWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "PTT-20240305-WA0001.opus")
	require.NoError(t, os.WriteFile(src, []byte("voice"), 0o644))

	dst, _, err := EncryptFile(testKey(t), src, filepath.Join(dir, "chat_media"))
	require.NoError(t, err)
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestEncryptFileMissingSource(t *testing.T) {
	_, created, err := EncryptFile(testKey(t), filepath.Join(t.TempDir(), "nope.jpg"), t.TempDir())
	assert.Error(t, err)
	assert.False(t, created)
}

func TestKeyFromDocument(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "chat.html")
	require.NoError(t, os.WriteFile(doc, []byte(`<script>window.ENC_KEY = "00112233445566778899aabbccddeeff";</script>`), 0o644))

	key, ok := KeyFromDocument(doc)
	require.True(t, ok)
	assert.Equal(t, "00112233445566778899aabbccddeeff", key)

	_, ok = KeyFromDocument(filepath.Join(dir, "missing.html"))
	assert.False(t, ok)
}
