package manifest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odfbrute/internal/odfcrypt"
	"odfbrute/internal/odftest"
)

func requireManifestError(t *testing.T, err error) *Error {
	t.Helper()
	require.Error(t, err)
	var me *Error
	require.True(t, errors.As(err, &me), "want *manifest.Error, got %T: %v", err, err)
	return me
}

func TestParse(t *testing.T) {
	salt := []byte("0123456789abcdef")
	iv := []byte("fedcba9876543210")
	data := odftest.MustBuild(odftest.Document{
		Password:   "secret",
		Iterations: 1000,
		Salt:       salt,
		IV:         iv,
	})

	target, err := Parse(data, "")
	require.NoError(t, err)

	assert.Equal(t, DefaultEntry, target.Entry)
	assert.Equal(t, odfcrypt.AESCBC, target.Params.Algorithm)
	assert.Equal(t, iv, target.Params.IV)
	assert.Equal(t, salt, target.Params.Salt)
	assert.Equal(t, 1000, target.Params.Iterations)
	assert.Equal(t, odfcrypt.KeyLen, target.Params.KeyLen)
	assert.False(t, target.Params.PreHash)
	assert.Equal(t, int64(len(odftest.ContentXML)), target.Size)
	assert.NotEmpty(t, target.Ciphertext)
	assert.Zero(t, len(target.Ciphertext)%odfcrypt.BlockSize)
}

func TestParsePreHashFlag(t *testing.T) {
	data := odftest.MustBuild(odftest.Document{Password: "x", PreHashFlag: true, OmitSize: true})
	target, err := Parse(data, DefaultEntry)
	require.NoError(t, err)
	assert.True(t, target.Params.PreHash)
	assert.Zero(t, target.Size)
}

func TestParseRejectsNonZip(t *testing.T) {
	_, err := Parse([]byte("%PDF-1.7 ..."), "")
	me := requireManifestError(t, err)
	assert.Contains(t, me.Reason, "not a zip")

	_, err = Parse([]byte{'P', 'K', 3, 4, 0, 0}, "")
	me = requireManifestError(t, err)
	assert.Contains(t, me.Reason, "cannot open")
}

func TestParseMissingManifest(t *testing.T) {
	data := odftest.MustBuild(odftest.Document{Password: "x", SkipManifest: true})
	_, err := Parse(data, "")
	me := requireManifestError(t, err)
	assert.Contains(t, me.Reason, Path)
}

func TestParseMissingEntry(t *testing.T) {
	data := odftest.MustBuild(odftest.Document{Password: "x"})
	_, err := Parse(data, "settings.xml")
	requireManifestError(t, err)

	_, err = Parse(data, "styles.xml")
	me := requireManifestError(t, err)
	assert.Contains(t, me.Reason, "not encrypted")
}

func TestParseManifestErrors(t *testing.T) {
	base := odftest.Manifest(odftest.Document{Iterations: 1000})

	tests := []struct {
		name     string
		manifest string
	}{
		{"not xml", "garbage"},
		{"no key-derivation attributes", strings.Replace(base,
			`manifest:iteration-count="1000" manifest:salt="AAAAAAAAAAAAAAAAAAAAAA=="`, "", 1)},
		{"no salt", strings.Replace(base, `manifest:salt="AAAAAAAAAAAAAAAAAAAAAA=="`, "", 1)},
		{"bad salt", strings.Replace(base, `manifest:salt="AAAAAAAAAAAAAAAAAAAAAA=="`, `manifest:salt="!!!"`, 1)},
		{"no iteration count", strings.Replace(base, `manifest:iteration-count="1000"`, "", 1)},
		{"non numeric iteration count", strings.Replace(base, `manifest:iteration-count="1000"`, `manifest:iteration-count="lots"`, 1)},
		{"zero iteration count", strings.Replace(base, `manifest:iteration-count="1000"`, `manifest:iteration-count="0"`, 1)},
		{"no iv", strings.Replace(base, `manifest:initialisation-vector="AAAAAAAAAAAAAAAAAAAAAA=="`, "", 1)},
		{"short iv", strings.Replace(base, `manifest:initialisation-vector="AAAAAAAAAAAAAAAAAAAAAA=="`, `manifest:initialisation-vector="AAAA"`, 1)},
		{"blowfish", strings.Replace(base, "http://www.w3.org/2001/04/xmlenc#aes256-cbc", "Blowfish CFB", 1)},
		{"argon2", strings.Replace(base, `manifest:key-derivation-name="PBKDF2"`,
			`manifest:key-derivation-name="urn:org:documentfoundation:names:experimental:office:manifest:argon2id"`, 1)},
		{"bad size", strings.Replace(base, `manifest:size="`, `manifest:size="x`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotEqual(t, base, tt.manifest)
			_, _, err := ParseManifest([]byte(tt.manifest), DefaultEntry)
			requireManifestError(t, err)
		})
	}
}

func TestParseUsesManifestOverride(t *testing.T) {
	m := strings.Replace(odftest.Manifest(odftest.Document{}), `manifest:iteration-count="100"`, "", 1)
	data := odftest.MustBuild(odftest.Document{Password: "x", Manifest: m})
	_, err := Parse(data, "")
	me := requireManifestError(t, err)
	assert.Contains(t, me.Error(), "iteration-count")
}
