package hls

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"
)

// KeyFetchFunc retrieves the raw bytes of an AES-128 key from its URI. The
// caller owns HTTP transport concerns; this is the only network
// collaborator the decryptor requires.
type KeyFetchFunc func(ctx context.Context, uri string) ([]byte, error)

// Decryptor performs AES-128-CBC segment decryption, caching fetched keys
// by URI so a playlist's typical single-key-for-many-segments shape costs
// one fetch instead of one per segment.
type Decryptor struct {
	fetchKey KeyFetchFunc

	mu    sync.Mutex
	cache map[string][]byte
}

func NewDecryptor(fetchKey KeyFetchFunc) *Decryptor {
	return &Decryptor{fetchKey: fetchKey, cache: make(map[string][]byte)}
}

// Decrypt decrypts body per info, or returns it unchanged when info is nil
// or declares METHOD=NONE. seq feeds the IV-derivation fallback when
// info.IV is absent.
func (d *Decryptor) Decrypt(ctx context.Context, seq int64, info *KeyInfo, body []byte) ([]byte, error) {
	if info == nil || info.Method == "" || info.Method == "NONE" {
		return body, nil
	}
	if info.Method != "AES-128" {
		return nil, &DecryptionError{MediaSequenceNumber: seq, Cause: fmt.Errorf("unsupported key method %q", info.Method)}
	}

	key, err := d.key(ctx, info.URI)
	if err != nil {
		return nil, &DecryptionError{MediaSequenceNumber: seq, Cause: err}
	}
	if len(key) != 16 {
		return nil, &DecryptionError{MediaSequenceNumber: seq, Cause: fmt.Errorf("key length %d, want 16", len(key))}
	}

	iv := info.IV
	if len(iv) == 0 {
		iv = sequenceIV(seq)
	}
	if len(iv) != 16 {
		return nil, &DecryptionError{MediaSequenceNumber: seq, Cause: fmt.Errorf("iv length %d, want 16", len(iv))}
	}
	if len(body)%aes.BlockSize != 0 {
		return nil, &DecryptionError{MediaSequenceNumber: seq, Cause: fmt.Errorf("ciphertext length %d not a multiple of block size", len(body))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &DecryptionError{MediaSequenceNumber: seq, Cause: err}
	}
	plaintext := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, body)

	unpadded, err := pkcs7Unpad(plaintext)
	if err != nil {
		return nil, &DecryptionError{MediaSequenceNumber: seq, Cause: err}
	}
	return unpadded, nil
}

func (d *Decryptor) key(ctx context.Context, uri string) ([]byte, error) {
	d.mu.Lock()
	if k, ok := d.cache[uri]; ok {
		d.mu.Unlock()
		return k, nil
	}
	d.mu.Unlock()

	k, err := d.fetchKey(ctx, uri)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cache[uri] = k
	d.mu.Unlock()
	return k, nil
}

// sequenceIV derives a 128-bit big-endian IV from a media sequence number
// per §4.J: high 64 bits zero, low 64 bits the sequence number.
func sequenceIV(seq int64) []byte {
	iv := make([]byte, 16)
	binary.BigEndian.PutUint64(iv[8:], uint64(seq))
	return iv
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("pkcs7: empty input")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, fmt.Errorf("pkcs7: invalid padding byte %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("pkcs7: inconsistent padding")
		}
	}
	return data[:len(data)-pad], nil
}
