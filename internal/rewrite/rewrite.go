// Package rewrite writes a copy of an ODF container with one entry
// replaced by its decrypted plaintext.
package rewrite

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yeka/zip"
)

// Error reports a failure to produce the output container. The password
// was already recovered when this happens.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rewrite: %v", e.Err)
	}
	return fmt.Sprintf("rewrite %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rewrite copies every entry of container to w in order, replacing the
// contents of entry with plaintext. The replaced entry is deflated; every
// other entry keeps its compression method so a leading stored mimetype
// stays stored.
func Rewrite(w io.Writer, container []byte, entry string, plaintext []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(container), int64(len(container)))
	if err != nil {
		return &Error{Err: fmt.Errorf("open container: %w", err)}
	}

	replaced := false
	zw := zip.NewWriter(w)
	for _, f := range zr.File {
		fh := &zip.FileHeader{
			Name:          f.Name,
			Method:        f.Method,
			Comment:       f.Comment,
			ExternalAttrs: f.ExternalAttrs,
		}
		fh.SetModTime(f.ModTime())

		if f.Name == entry {
			fh.Method = zip.Deflate
			if err := writeEntry(zw, fh, bytes.NewReader(plaintext)); err != nil {
				return err
			}
			replaced = true
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return &Error{Err: fmt.Errorf("read %s: %w", f.Name, err)}
		}
		err = writeEntry(zw, fh, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	if !replaced {
		return &Error{Err: fmt.Errorf("entry %s not in container", entry)}
	}
	if err := zw.Close(); err != nil {
		return &Error{Err: fmt.Errorf("finish archive: %w", err)}
	}
	return nil
}

func writeEntry(zw *zip.Writer, fh *zip.FileHeader, r io.Reader) error {
	w, err := zw.CreateHeader(fh)
	if err != nil {
		return &Error{Err: fmt.Errorf("create %s: %w", fh.Name, err)}
	}
	if _, err := io.Copy(w, r); err != nil {
		return &Error{Err: fmt.Errorf("write %s: %w", fh.Name, err)}
	}
	return nil
}

// WriteFile rewrites container into a new file at dst. The output goes to a
// temporary file in dst's directory and is renamed into place, so dst is
// either complete or untouched. dst must not be the source container.
func WriteFile(src, dst string, container []byte, entry string, plaintext []byte) error {
	if same, err := samePath(src, dst); err != nil {
		return &Error{Path: dst, Err: err}
	} else if same {
		return &Error{Path: dst, Err: fmt.Errorf("refusing to overwrite the source container")}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".odfbrute-*")
	if err != nil {
		return &Error{Path: dst, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := Rewrite(tmp, container, entry, plaintext); err != nil {
		cleanup()
		return &Error{Path: dst, Err: err}
	}
	// CreateTemp makes the file 0600; the output keeps the source's mode
	if fi, err := os.Stat(src); err == nil {
		if err := tmp.Chmod(fi.Mode().Perm()); err != nil {
			cleanup()
			return &Error{Path: dst, Err: err}
		}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &Error{Path: dst, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &Error{Path: dst, Err: err}
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return &Error{Path: dst, Err: err}
	}
	return nil
}

func samePath(a, b string) (bool, error) {
	if a == "" {
		return false, nil
	}
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}
	sa, errA := os.Stat(a)
	sb, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false, nil
	}
	return os.SameFile(sa, sb), nil
}
