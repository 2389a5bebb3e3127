package odfcrypt

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
)

var ErrInflate = errors.New("raw deflate stream rejected")

// maxDeflateRatio bounds how far DEFLATE can expand its input.
const maxDeflateRatio = 1032

// Inflater decompresses raw DEFLATE data. It reuses one decoder between
// calls and must not be shared between goroutines.
type Inflater struct {
	src      *bytes.Reader
	fr       io.ReadCloser
	resetter flate.Resetter
	copyBuf  []byte
}

func NewInflater() *Inflater {
	src := bytes.NewReader(nil)
	fr := flate.NewReader(src)
	return &Inflater{
		src:      src,
		fr:       fr,
		resetter: fr.(flate.Resetter),
		copyBuf:  make([]byte, 32*1024),
	}
}

// Inflate decompresses data. When want is positive the output must be
// exactly want bytes long.
func (in *Inflater) Inflate(data []byte, want int64) ([]byte, error) {
	in.src.Reset(data)
	if err := in.resetter.Reset(in.src, nil); err != nil {
		return nil, ErrInflate
	}

	var out bytes.Buffer
	var r io.Reader = in.fr
	if want > 0 {
		// want comes from the manifest; never trust it past what data could
		// possibly inflate to
		out.Grow(int(min(want, int64(len(data))*maxDeflateRatio)))
		r = io.LimitReader(in.fr, want+1)
	} else {
		out.Grow(len(data) * 4)
	}
	if _, err := io.CopyBuffer(&out, r, in.copyBuf); err != nil {
		return nil, ErrInflate
	}
	if want > 0 && int64(out.Len()) != want {
		return nil, ErrInflate
	}
	return out.Bytes(), nil
}

// Inflate is a one-shot helper around Inflater.
func Inflate(data []byte) ([]byte, error) {
	return NewInflater().Inflate(data, 0)
}

// Deflate compresses data as a raw DEFLATE stream.
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
