package growthbook

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func encryptForTest(t *testing.T, plaintext, keyB64 string) string {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(keyB64)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...))
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func TestAESDecrypter_RoundTrip(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	ciphertext := encryptForTest(t, `{"f1":true}`, key)

	d := AESDecrypter{}
	plain, err := d.Decrypt(ciphertext, key)
	require.NoError(t, err)
	require.JSONEq(t, `{"f1":true}`, plain)
}

func TestAESDecrypter_RejectsShortCiphertext(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	_, err := AESDecrypter{}.Decrypt(base64.StdEncoding.EncodeToString([]byte("x")), key)
	require.Error(t, err)
}
