// Package odftest builds password-protected ODF containers for tests, playing
// the role of the office suite that normally produces them.
package odftest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/yeka/zip"

	"odfbrute/internal/odfcrypt"
)

const (
	MimeType = "application/vnd.oasis.opendocument.text"

	ContentXML = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text><text:p>confidential</text:p></office:text></office:body></office:document-content>`

	StylesXML = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-styles xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"><office:styles/></office:document-styles>`

	MetaXML = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-meta xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"><office:meta/></office:document-meta>`
)

// Document describes the container to build. Zero values get defaults.
type Document struct {
	Password   string
	Mode       odfcrypt.Mode
	Iterations int
	Salt       []byte
	IV         []byte
	// PreHashFlag writes a start-key-generation element into the manifest.
	PreHashFlag bool
	Content     []byte
	// OmitSize leaves manifest:size off the content entry.
	OmitSize bool
	// Manifest replaces the generated manifest verbatim.
	Manifest string
	// SkipManifest leaves META-INF/manifest.xml out of the archive.
	SkipManifest bool
}

func (d *Document) defaults() {
	if d.Iterations == 0 {
		d.Iterations = 100
	}
	if d.Salt == nil {
		d.Salt = make([]byte, 16)
	}
	if d.IV == nil {
		d.IV = make([]byte, odfcrypt.IVLen)
	}
	if d.Content == nil {
		d.Content = []byte(ContentXML)
	}
}

// Build returns the container bytes.
func Build(d Document) ([]byte, error) {
	d.defaults()

	params := &odfcrypt.Params{
		Algorithm:  odfcrypt.AESCBC,
		IV:         d.IV,
		Salt:       d.Salt,
		Iterations: d.Iterations,
		KeyLen:     odfcrypt.KeyLen,
	}
	key, err := odfcrypt.DeriveKey([]byte(d.Password), d.Mode, params)
	if err != nil {
		return nil, err
	}
	compressed, err := odfcrypt.Deflate(d.Content)
	if err != nil {
		return nil, err
	}
	ciphertext, err := odfcrypt.EncryptCBC(key, d.IV, compressed)
	if err != nil {
		return nil, err
	}

	manifest := d.Manifest
	if manifest == "" {
		manifest = Manifest(d)
	}

	entries := []entry{
		{name: "mimetype", data: []byte(MimeType), method: zip.Store},
		{name: "content.xml", data: ciphertext, method: zip.Store},
		{name: "styles.xml", data: []byte(StylesXML), method: zip.Deflate},
		{name: "meta.xml", data: []byte(MetaXML), method: zip.Deflate},
	}
	if !d.SkipManifest {
		entries = append(entries, entry{name: "META-INF/manifest.xml", data: []byte(manifest), method: zip.Deflate})
	}
	return writeZip(entries)
}

// MustBuild is Build for fixtures that cannot fail.
func MustBuild(d Document) []byte {
	b, err := Build(d)
	if err != nil {
		panic(err)
	}
	return b
}

// Manifest renders the manifest.xml Build would write for d.
func Manifest(d Document) string {
	d.defaults()
	size := ""
	if !d.OmitSize {
		size = fmt.Sprintf(` manifest:size="%d"`, len(d.Content))
	}
	startKey := ""
	if d.PreHashFlag {
		startKey = `<manifest:start-key-generation manifest:start-key-generation-name="http://www.w3.org/2000/09/xmldsig#sha256" manifest:key-size="32"/>`
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">`)
	b.WriteString(`<manifest:file-entry manifest:full-path="/" manifest:media-type="` + MimeType + `"/>`)
	fmt.Fprintf(&b, `<manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"%s>`, size)
	b.WriteString(`<manifest:encryption-data manifest:checksum-type="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0#sha256-1k" manifest:checksum="">`)
	fmt.Fprintf(&b, `<manifest:algorithm manifest:algorithm-name="http://www.w3.org/2001/04/xmlenc#aes256-cbc" manifest:initialisation-vector="%s"/>`,
		base64.StdEncoding.EncodeToString(d.IV))
	b.WriteString(startKey)
	fmt.Fprintf(&b, `<manifest:key-derivation manifest:key-derivation-name="PBKDF2" manifest:key-size="32" manifest:iteration-count="%d" manifest:salt="%s"/>`,
		d.Iterations, base64.StdEncoding.EncodeToString(d.Salt))
	b.WriteString(`</manifest:encryption-data></manifest:file-entry>`)
	b.WriteString(`<manifest:file-entry manifest:full-path="styles.xml" manifest:media-type="text/xml"/>`)
	b.WriteString(`<manifest:file-entry manifest:full-path="meta.xml" manifest:media-type="text/xml"/>`)
	b.WriteString(`</manifest:manifest>`)
	return b.String()
}

type entry struct {
	name   string
	data   []byte
	method uint16
}

func writeZip(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	mod := time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.name, Method: e.method}
		fh.SetModTime(mod)
		w, err := zw.CreateHeader(fh)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
