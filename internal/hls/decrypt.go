package hls

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

var (
	// ErrSegmentTooShort marks a payload too small to contain the leading
	// IV. This is a per-segment condition, never fatal to the whole job.
	ErrSegmentTooShort = errors.New("segment payload shorter than one AES block")

	// ErrInvalidPadding marks malformed PKCS#7 padding after decryption.
	ErrInvalidPadding = errors.New("invalid PKCS#7 padding")
)

// DecryptSegment decrypts one AES-128-CBC encrypted segment payload.
// The first 16 bytes of data are the IV, the remainder is the ciphertext.
// PKCS#7 padding is removed from the result.
func DecryptSegment(data, key []byte) ([]byte, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("AES-128 key must be 16 bytes, got %d", len(key))
	}
	if len(data) < aes.BlockSize {
		return nil, ErrSegmentTooShort
	}

	iv := data[:aes.BlockSize]
	ciphertext := data[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the AES block size", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AES cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

// pkcs7Unpad strips PKCS#7 padding, verifying every padding byte.
func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
