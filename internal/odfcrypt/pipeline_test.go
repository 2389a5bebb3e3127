package odfcrypt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odfbrute/internal/odfcrypt"
)

func sealed(t *testing.T, password string, mode odfcrypt.Mode, plaintext []byte) (*odfcrypt.Params, []byte) {
	t.Helper()
	p := &odfcrypt.Params{
		Algorithm:  odfcrypt.AESCBC,
		IV:         []byte("0123456789abcdef"),
		Salt:       []byte("saltsaltsaltsalt"),
		Iterations: 50,
		KeyLen:     odfcrypt.KeyLen,
	}
	key, err := odfcrypt.DeriveKey([]byte(password), mode, p)
	require.NoError(t, err)
	compressed, err := odfcrypt.Deflate(plaintext)
	require.NoError(t, err)
	ct, err := odfcrypt.EncryptCBC(key, p.IV, compressed)
	require.NoError(t, err)
	return p, ct
}

func TestPipelineAcceptsCorrectPassword(t *testing.T) {
	doc := []byte(`<doc><p>secret</p></doc>`)
	for _, mode := range odfcrypt.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			p, ct := sealed(t, "hunter2", mode, doc)
			pl := odfcrypt.NewPipeline(p, ct, int64(len(doc)))

			res := pl.Try([]byte("hunter2"), mode)
			require.True(t, res.OK(), "stage %s: %v", res.Stage, res.Err)
			assert.Equal(t, doc, res.Plaintext)

			got, res := pl.Decrypt([]byte("hunter2"))
			require.True(t, res.OK())
			assert.Equal(t, mode, got)
		})
	}
}

func TestPipelineRejectsWrongPassword(t *testing.T) {
	doc := []byte(`<doc><p>secret</p></doc>`)
	p, ct := sealed(t, "hunter2", odfcrypt.Raw, doc)
	pl := odfcrypt.NewPipeline(p, ct, 0)

	for _, pwd := range []string{"", "hunter", "hunter3", "HUNTER2"} {
		for _, mode := range odfcrypt.Modes {
			res := pl.Try([]byte(pwd), mode)
			assert.False(t, res.OK(), "password %q mode %s", pwd, mode)
			assert.Nil(t, res.Plaintext)
			assert.Contains(t, []odfcrypt.Stage{odfcrypt.StageUnpad, odfcrypt.StageInflate, odfcrypt.StageXMLValidate}, res.Stage)
		}
	}
	// the right password under the wrong mode is still wrong
	res := pl.Try([]byte("hunter2"), odfcrypt.PreHashed)
	assert.False(t, res.OK())
}

func TestPipelineRejectsNonXMLPlaintext(t *testing.T) {
	p, ct := sealed(t, "pw", odfcrypt.Raw, []byte("plain text, not xml"))
	res := odfcrypt.NewPipeline(p, ct, 0).Try([]byte("pw"), odfcrypt.Raw)
	assert.Equal(t, odfcrypt.StageXMLValidate, res.Stage)
	assert.ErrorIs(t, res.Err, odfcrypt.ErrXMLValidation)
}

func TestPipelineRejectsTruncatedCiphertext(t *testing.T) {
	p, ct := sealed(t, "pw", odfcrypt.Raw, []byte(`<a/>`))
	res := odfcrypt.NewPipeline(p, ct[:len(ct)-1], 0).Try([]byte("pw"), odfcrypt.Raw)
	assert.Equal(t, odfcrypt.StageCipher, res.Stage)
}

func TestPipelineSizeMismatch(t *testing.T) {
	doc := []byte(`<doc/>`)
	p, ct := sealed(t, "pw", odfcrypt.Raw, doc)
	res := odfcrypt.NewPipeline(p, ct, int64(len(doc)+3)).Try([]byte("pw"), odfcrypt.Raw)
	assert.Equal(t, odfcrypt.StageInflate, res.Stage)
}

func TestPipelineKDFFailure(t *testing.T) {
	p, ct := sealed(t, "pw", odfcrypt.Raw, []byte(`<a/>`))
	p.Iterations = 0
	mode, res := odfcrypt.NewPipeline(p, ct, 0).Decrypt([]byte("pw"))
	assert.Equal(t, odfcrypt.PreHashed, mode)
	assert.Equal(t, odfcrypt.StageKDF, res.Stage)
	assert.ErrorIs(t, res.Err, odfcrypt.ErrKDF)
}

func TestZeroResultIsNotOK(t *testing.T) {
	var res odfcrypt.Result
	assert.False(t, res.OK())
	assert.Equal(t, "unset", res.Stage.String())
	assert.Equal(t, "done", odfcrypt.StageDone.String())
}

func TestPipelineHugeDeclaredSize(t *testing.T) {
	doc := []byte(`<doc><p>secret</p></doc>`)
	p, ct := sealed(t, "pw", odfcrypt.Raw, doc)
	res := odfcrypt.NewPipeline(p, ct, 1<<40).Try([]byte("pw"), odfcrypt.Raw)
	assert.Equal(t, odfcrypt.StageInflate, res.Stage)
	assert.ErrorIs(t, res.Err, odfcrypt.ErrInflate)
}
