package odfcrypt

import (
	"crypto/aes"
	"fmt"
)

const (
	BlockSize = aes.BlockSize
	IVLen     = aes.BlockSize
	// KeyLen is fixed to the AES-256 key size used by ODF producers;
	// it is not negotiated from the manifest.
	KeyLen = 32
)

type Algorithm int

const (
	AESCBC Algorithm = iota
)

func (a Algorithm) String() string {
	switch a {
	case AESCBC:
		return "AES-256-CBC"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// Params holds the cipher parameters of one encrypted entry.
// It is shared read-only between all trials of a session.
type Params struct {
	Algorithm  Algorithm
	IV         []byte
	Salt       []byte
	Iterations int
	KeyLen     int
	PreHash    bool
}

func (p *Params) Validate() error {
	if p.Algorithm != AESCBC {
		return fmt.Errorf("unsupported algorithm %s", p.Algorithm)
	}
	if len(p.IV) != IVLen {
		return fmt.Errorf("initialisation vector must be %d bytes, got %d", IVLen, len(p.IV))
	}
	if p.Iterations < 1 {
		return fmt.Errorf("iteration count must be positive, got %d", p.Iterations)
	}
	if p.KeyLen != KeyLen {
		return fmt.Errorf("key length must be %d bytes, got %d", KeyLen, p.KeyLen)
	}
	return nil
}

// Mode selects what is fed into PBKDF2 as the password.
type Mode int

const (
	// PreHashed feeds SHA-256(password) into the KDF.
	PreHashed Mode = iota
	// Raw feeds the UTF-8 password bytes directly.
	Raw
)

// Modes is the fixed order in which every candidate is tried.
var Modes = [...]Mode{PreHashed, Raw}

func (m Mode) String() string {
	switch m {
	case PreHashed:
		return "prehashed"
	case Raw:
		return "raw"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}
