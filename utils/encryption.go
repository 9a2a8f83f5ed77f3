package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"donorlink/config"
)

// Sender SMTP/IMAP passwords are stored encrypted at rest and decrypted at
// the last possible moment, in the mailer and the verification probes.
// AES-CFB with a random IV prepended to the ciphertext; base64url on the
// wire so values survive JSON round trips.

func credentialCipher() (cipher.Block, error) {
	block, err := aes.NewCipher([]byte(config.AppConfig.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("encryption key unusable: %w", err)
	}
	return block, nil
}

// EncryptCredential encrypts a sender credential for storage. Empty input
// stays empty, so optional fields that were never set produce no ciphertext.
func EncryptCredential(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	block, err := credentialCipher()
	if err != nil {
		return "", err
	}

	buf := make([]byte, aes.BlockSize+len(plain))
	iv := buf[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(buf[aes.BlockSize:], []byte(plain))

	return base64.URLEncoding.EncodeToString(buf), nil
}

// DecryptCredential reverses EncryptCredential.
func DecryptCredential(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}

	block, err := credentialCipher()
	if err != nil {
		return "", err
	}

	raw, err := base64.URLEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("stored credential malformed: %w", err)
	}
	if len(raw) < aes.BlockSize {
		return "", fmt.Errorf("stored credential malformed: shorter than one block")
	}

	out := raw[aes.BlockSize:]
	cipher.NewCFBDecrypter(block, raw[:aes.BlockSize]).XORKeyStream(out, out)
	return string(out), nil
}
