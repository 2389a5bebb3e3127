package odfcrypt

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCBCRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("decrypt(encrypt(p)) == p", prop.ForAll(
		func(key, iv, plaintext []byte) bool {
			ct, err := EncryptCBC(key, iv, plaintext)
			if err != nil {
				return false
			}
			if len(ct)%BlockSize != 0 {
				return false
			}
			padded, err := DecryptCBC(key, iv, ct)
			if err != nil {
				return false
			}
			got, err := Unpad(padded)
			if err != nil {
				return false
			}
			return bytes.Equal(got, plaintext)
		},
		gen.SliceOfN(KeyLen, gen.UInt8()),
		gen.SliceOfN(IVLen, gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestDecryptCBCRejectsBadLengths(t *testing.T) {
	key := make([]byte, KeyLen)
	iv := make([]byte, IVLen)

	_, err := DecryptCBC(key, iv, nil)
	assert.ErrorIs(t, err, ErrCipher)

	_, err = DecryptCBC(key, iv, make([]byte, 17))
	assert.ErrorIs(t, err, ErrCipher)

	_, err = DecryptCBC(key, iv[:8], make([]byte, 16))
	assert.ErrorIs(t, err, ErrCipher)

	_, err = DecryptCBC(key[:7], iv, make([]byte, 16))
	assert.ErrorIs(t, err, ErrCipher)
}

func TestUnpad(t *testing.T) {
	block := func(tail ...byte) []byte {
		b := bytes.Repeat([]byte{'x'}, BlockSize-len(tail))
		return append(b, tail...)
	}

	tests := []struct {
		name    string
		in      []byte
		want    []byte
		wantErr bool
	}{
		{name: "one byte", in: block(1), want: bytes.Repeat([]byte{'x'}, 15)},
		{name: "four bytes", in: block(4, 4, 4, 4), want: bytes.Repeat([]byte{'x'}, 12)},
		{name: "full block", in: bytes.Repeat([]byte{16}, 16), want: []byte{}},
		{name: "zero pad byte", in: block(0), wantErr: true},
		{name: "pad too large", in: block(17), wantErr: true},
		{name: "inconsistent", in: block(3, 2, 3), wantErr: true},
		{name: "empty", in: nil, wantErr: true},
		{name: "not block aligned", in: []byte{1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unpad(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPadding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPadAlwaysAddsBlock(t *testing.T) {
	assert.Len(t, Pad(nil), BlockSize)
	assert.Len(t, Pad(make([]byte, BlockSize)), 2*BlockSize)
	assert.Len(t, Pad(make([]byte, 5)), BlockSize)
}
