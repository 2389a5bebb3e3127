package odfcrypt

import (
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
)

var ErrKDF = errors.New("key derivation failed")

// DeriveKey runs PBKDF2-HMAC-SHA1 over the password, pre-hashing it with
// SHA-256 first when mode is PreHashed.
func DeriveKey(password []byte, mode Mode, p *Params) ([]byte, error) {
	if p.Iterations < 1 || p.KeyLen != KeyLen {
		return nil, ErrKDF
	}
	input := password
	switch mode {
	case PreHashed:
		sum := sha256.Sum256(password)
		defer zeroBytes(sum[:])
		input = sum[:]
	case Raw:
	default:
		return nil, ErrKDF
	}
	return pbkdf2.Key(input, p.Salt, p.Iterations, p.KeyLen, sha1.New), nil
}

// zeroBytes overwrites a byte slice with zeros
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
