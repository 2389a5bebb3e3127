// Package manifest reads the encryption parameters and ciphertext of one
// entry out of a password-protected ODF container.
package manifest

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yeka/zip"

	"odfbrute/internal/odfcrypt"
)

const (
	Path         = "META-INF/manifest.xml"
	DefaultEntry = "content.xml"
	Namespace    = "urn:oasis:names:tc:opendocument:xmlns:manifest:1.0"
)

// Error reports a container that cannot be cracked at all.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest: %s: %v", e.Reason, e.Err)
	}
	return "manifest: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(err error, format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...), Err: err}
}

// Target is everything a cracking session needs about the encrypted entry.
type Target struct {
	Entry      string
	Params     odfcrypt.Params
	Ciphertext []byte
	// Size is the plaintext length announced by the manifest, 0 if absent.
	Size int64
}

type document struct {
	XMLName xml.Name    `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 manifest"`
	Entries []fileEntry `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 file-entry"`
}

type fileEntry struct {
	FullPath   string          `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 full-path,attr"`
	Size       string          `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 size,attr"`
	Encryption *encryptionData `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 encryption-data"`
}

type encryptionData struct {
	Algorithm     *algorithm     `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 algorithm"`
	StartKey      *startKey      `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 start-key-generation"`
	KeyDerivation *keyDerivation `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 key-derivation"`
}

type algorithm struct {
	Name string `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 algorithm-name,attr"`
	IV   string `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 initialisation-vector,attr"`
}

type startKey struct {
	Name string `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 start-key-generation-name,attr"`
}

type keyDerivation struct {
	Name           string `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 key-derivation-name,attr"`
	Salt           string `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 salt,attr"`
	IterationCount string `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 iteration-count,attr"`
}

var (
	cbcAlgorithms = map[string]bool{
		"": true,
		"http://www.w3.org/2001/04/xmlenc#aes256-cbc": true,
	}
	pbkdf2Names = map[string]bool{
		"":       true,
		"PBKDF2": true,
		"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0#pbkdf2": true,
	}
)

// IsZip reports whether data starts with a local file header.
func IsZip(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte{'P', 'K', 0x03, 0x04})
}

// Parse opens the container, decodes its manifest and returns the
// parameters and raw ciphertext of entry.
func Parse(data []byte, entry string) (*Target, error) {
	if entry == "" {
		entry = DefaultEntry
	}
	if !IsZip(data) {
		return nil, fail(nil, "not a zip container")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fail(err, "cannot open container")
	}

	manifestFile := findFile(zr, Path)
	if manifestFile == nil {
		return nil, fail(nil, "%s missing", Path)
	}
	raw, err := readFile(manifestFile)
	if err != nil {
		return nil, fail(err, "cannot read %s", Path)
	}

	params, size, err := ParseManifest(raw, entry)
	if err != nil {
		return nil, err
	}

	encrypted := findFile(zr, entry)
	if encrypted == nil {
		return nil, fail(nil, "entry %s missing from container", entry)
	}
	ciphertext, err := readFile(encrypted)
	if err != nil {
		return nil, fail(err, "cannot read %s", entry)
	}
	if len(ciphertext) == 0 {
		return nil, fail(nil, "entry %s is empty", entry)
	}

	return &Target{
		Entry:      entry,
		Params:     *params,
		Ciphertext: ciphertext,
		Size:       size,
	}, nil
}

// ParseManifest extracts the encryption parameters for entry from a raw
// manifest.xml document.
func ParseManifest(raw []byte, entry string) (*odfcrypt.Params, int64, error) {
	var doc document
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, 0, fail(err, "malformed manifest xml")
	}

	var fe *fileEntry
	for i := range doc.Entries {
		if doc.Entries[i].FullPath == entry {
			fe = &doc.Entries[i]
			break
		}
	}
	if fe == nil {
		return nil, 0, fail(nil, "entry %s not listed in manifest", entry)
	}
	enc := fe.Encryption
	if enc == nil {
		return nil, 0, fail(nil, "entry %s is not encrypted", entry)
	}
	if enc.Algorithm == nil {
		return nil, 0, fail(nil, "algorithm element missing")
	}
	if enc.KeyDerivation == nil {
		return nil, 0, fail(nil, "key-derivation element missing")
	}
	if !cbcAlgorithms[strings.TrimSpace(enc.Algorithm.Name)] {
		return nil, 0, fail(nil, "unsupported algorithm %q", enc.Algorithm.Name)
	}
	if !pbkdf2Names[strings.TrimSpace(enc.KeyDerivation.Name)] {
		return nil, 0, fail(nil, "unsupported key derivation %q", enc.KeyDerivation.Name)
	}

	iv, err := decodeAttr("initialisation-vector", enc.Algorithm.IV)
	if err != nil {
		return nil, 0, err
	}
	salt, err := decodeAttr("salt", enc.KeyDerivation.Salt)
	if err != nil {
		return nil, 0, err
	}
	if enc.KeyDerivation.IterationCount == "" {
		return nil, 0, fail(nil, "iteration-count attribute missing")
	}
	iterations, err := strconv.Atoi(strings.TrimSpace(enc.KeyDerivation.IterationCount))
	if err != nil {
		return nil, 0, fail(err, "invalid iteration-count")
	}
	if iterations < 1 {
		return nil, 0, fail(nil, "iteration-count must be positive, got %d", iterations)
	}

	var size int64
	if fe.Size != "" {
		size, err = strconv.ParseInt(strings.TrimSpace(fe.Size), 10, 64)
		if err != nil || size < 0 {
			return nil, 0, fail(err, "invalid size %q", fe.Size)
		}
	}

	params := &odfcrypt.Params{
		Algorithm:  odfcrypt.AESCBC,
		IV:         iv,
		Salt:       salt,
		Iterations: iterations,
		KeyLen:     odfcrypt.KeyLen,
		PreHash:    enc.StartKey != nil,
	}
	if err := params.Validate(); err != nil {
		return nil, 0, fail(err, "invalid encryption parameters")
	}
	return params, size, nil
}

func decodeAttr(name, value string) ([]byte, error) {
	if value == "" {
		return nil, fail(nil, "%s attribute missing", name)
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fail(err, "invalid base64 in %s", name)
	}
	return b, nil
}

func findFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
