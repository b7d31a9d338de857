package nbind

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
)

// Decrypter decrypts the values of fields tagged encrypted=<keyID>.
// The binder base64-decodes the stored value before calling Decrypt.
type Decrypter interface {
	Decrypt(ciphertext []byte, keyID string) ([]byte, error)
}

type DecrypterFunc func(ciphertext []byte, keyID string) ([]byte, error)

func (f DecrypterFunc) Decrypt(ciphertext []byte, keyID string) ([]byte, error) {
	return f(ciphertext, keyID)
}

// AESKeys is a Decrypter that uses AES-GCM.  Ciphertexts are the
// nonce followed by the sealed data.  Keys must be 16, 24, or 32 bytes.
type AESKeys map[string][]byte

var _ Decrypter = AESKeys{}

func (k AESKeys) aead(keyID string) (cipher.AEAD, error) {
	key, ok := k[keyID]
	if !ok {
		return nil, errors.Errorf("no key with id '%s'", keyID)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrapf(err, "key %s", keyID)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrapf(err, "key %s", keyID)
	}
	return aead, nil
}

func (k AESKeys) Decrypt(ciphertext []byte, keyID string) ([]byte, error) {
	aead, err := k.aead(keyID)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errors.Errorf("ciphertext is too short")
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return plain, nil
}

// Encrypt produces the base64 text to store for an encrypted field
func (k AESKeys) Encrypt(plaintext string, keyID string) (string, error) {
	aead, err := k.aead(keyID)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.WithStack(err)
	}
	return base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}
