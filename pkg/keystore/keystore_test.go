package keystore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ks, err := EncryptSecret(testSecret, "pass123")
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}

	assert.Equal(t, 3, ks.Version)
	assert.Equal(t, "scrypt", ks.Crypto.KDF)
	assert.NotEmpty(t, ks.Id)

	got, err := DecryptSecret(ks, "pass123")
	assert.NoError(t, err)
	assert.Equal(t, testSecret, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	ks, err := EncryptSecret(testSecret, "pass123")
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}

	_, err = DecryptSecret(ks, "wrong")
	assert.ErrorIs(t, err, ErrMACMismatch)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")

	ks, err := EncryptSecret(testSecret, "pass123")
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}
	if err := SaveToFile(ks, path); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}

	got, err := LoadSecret(path, "pass123")
	assert.NoError(t, err)
	assert.Equal(t, testSecret, got)
}
