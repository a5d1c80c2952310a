package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/tendant/simple-oauth/internal/domain"
)

// Context encryption lets a grant or token carry an opaque secret payload
// (e.g. upstream provider tokens) such that only the holder of the live
// credential can recover it. Each sealed copy uses a fresh AES-256-GCM
// content-encryption key; that key is wrapped under a key-encryption key
// derived from the credential string itself, so the storage backend never
// holds a decryptable secret independent of the credential.
//
// The scheme is an explicit two-step derive-then-wrap:
//
//	KEK        = HKDF-SHA256(ikm=credential, salt=wrapSalt, info=wrapInfo)
//	WrappedKey = nonce || AES-256-GCM(KEK, nonce, CEK)
//	Ciphertext = AES-256-GCM(CEK, IV, plaintext)

const (
	contextKeyBytes = 32

	wrapSalt = "simple-oauth/context-wrap/v1"
	wrapInfo = "context-kek"
)

// SealContext encrypts plaintext under a fresh content key and wraps that
// key to the given credential.
func SealContext(plaintext []byte, credential string) (*domain.EncryptedContext, error) {
	cek := make([]byte, contextKeyBytes)
	if _, err := rand.Read(cek); err != nil {
		return nil, fmt.Errorf("failed to generate content key: %w", err)
	}

	contentGCM, err := newGCM(cek)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, contentGCM.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := contentGCM.Seal(nil, iv, plaintext, nil)

	wrapped, err := wrapKey(cek, credential)
	if err != nil {
		return nil, err
	}

	return &domain.EncryptedContext{
		Ciphertext: ciphertext,
		IV:         iv,
		WrappedKey: wrapped,
	}, nil
}

// OpenContext re-derives the wrapping key from the presented credential,
// unwraps the content key, and decrypts the context. A wrong credential
// fails the GCM authentication check.
func OpenContext(ec *domain.EncryptedContext, credential string) ([]byte, error) {
	cek, err := unwrapKey(ec.WrappedKey, credential)
	if err != nil {
		return nil, err
	}
	contentGCM, err := newGCM(cek)
	if err != nil {
		return nil, err
	}
	plaintext, err := contentGCM.Open(nil, ec.IV, ec.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt context: %w", err)
	}
	return plaintext, nil
}

// ResealContext decrypts a sealed context with the old credential and seals
// a fully independent copy (fresh content key, fresh nonce) to the new one.
// Revoking either credential leaves the other copy intact.
func ResealContext(ec *domain.EncryptedContext, oldCredential, newCredential string) (*domain.EncryptedContext, error) {
	plaintext, err := OpenContext(ec, oldCredential)
	if err != nil {
		return nil, err
	}
	return SealContext(plaintext, newCredential)
}

// wrapKey encrypts the content key under a KEK derived from the credential.
func wrapKey(cek []byte, credential string) ([]byte, error) {
	kek, err := deriveKEK(credential)
	if err != nil {
		return nil, err
	}
	wrapGCM, err := newGCM(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, wrapGCM.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate wrap nonce: %w", err)
	}
	return wrapGCM.Seal(nonce, nonce, cek, nil), nil
}

// unwrapKey recovers the content key from its wrapped form.
func unwrapKey(wrapped []byte, credential string) ([]byte, error) {
	kek, err := deriveKEK(credential)
	if err != nil {
		return nil, err
	}
	wrapGCM, err := newGCM(kek)
	if err != nil {
		return nil, err
	}
	if len(wrapped) < wrapGCM.NonceSize() {
		return nil, fmt.Errorf("wrapped key too short")
	}
	nonce, sealed := wrapped[:wrapGCM.NonceSize()], wrapped[wrapGCM.NonceSize():]
	cek, err := wrapGCM.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap content key: %w", err)
	}
	return cek, nil
}

// deriveKEK derives the key-encryption key from a credential string.
func deriveKEK(credential string) ([]byte, error) {
	kdf := hkdf.New(sha256.New, []byte(credential), []byte(wrapSalt), []byte(wrapInfo))
	kek := make([]byte, contextKeyBytes)
	if _, err := io.ReadFull(kdf, kek); err != nil {
		return nil, fmt.Errorf("failed to derive wrapping key: %w", err)
	}
	return kek, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
