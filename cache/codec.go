package cache

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/klauspost/compress/zip"
)

// entryVersion is written into every entry header.
const entryVersion = 1

const (
	extPlain      = ".bin"
	extCompressed = ".zip"

	// zipMember is the single member of a compressed entry archive.
	zipMember = "entry.gob"
)

// entryHeader is the first gob message of an entry file. Startup scans decode
// only the header.
type entryHeader struct {
	Version int
	Key     string
	Name    string
}

// entryValue is the second gob message of an entry file.
type entryValue struct {
	Value any

	// Empty marks a non-nil empty slice or map. gob decodes an empty slice
	// as nil.
	Empty bool
}

func newEntryValue(v any) entryValue {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return entryValue{Value: v, Empty: !rv.IsNil() && rv.Len() == 0}
	default:
		return entryValue{Value: v}
	}
}

// value returns the decoded value with empty containers restored.
func (e entryValue) value() any {
	if !e.Empty || e.Value == nil {
		return e.Value
	}
	rv := reflect.ValueOf(e.Value)
	switch {
	case rv.Kind() == reflect.Slice && rv.IsNil():
		return reflect.MakeSlice(rv.Type(), 0, 0).Interface()
	case rv.Kind() == reflect.Map && rv.IsNil():
		return reflect.MakeMap(rv.Type()).Interface()
	default:
		return e.Value
	}
}

// Register records a concrete result type so FileStore can encode it.
// Basic types and slices of basic types are registered already.
func Register(value any) {
	gob.Register(value)
}

func encodeEntry(w io.Writer, key Key, value any) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(entryHeader{Version: entryVersion, Key: key.id, Name: key.name}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := enc.Encode(newEntryValue(value)); err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return nil
}

// writeEntry writes key and value to w, through a zip archive when compress
// is set.
func writeEntry(w io.Writer, key Key, value any, compress bool) error {
	if !compress {
		bw := bufio.NewWriter(w)
		if err := encodeEntry(bw, key, value); err != nil {
			return err
		}
		return bw.Flush()
	}

	zw := zip.NewWriter(w)
	member, err := zw.CreateHeader(&zip.FileHeader{Name: zipMember, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create archive member: %w", err)
	}
	if err := encodeEntry(member, key, value); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// readEntry decodes the entry at path. With headerOnly set the value is not
// decoded and is returned as nil.
func readEntry(path string, headerOnly bool) (entryHeader, any, error) {
	var (
		hdr entryHeader
		val entryValue
	)

	decode := func(r io.Reader) error {
		dec := gob.NewDecoder(bufio.NewReader(r))
		if err := dec.Decode(&hdr); err != nil {
			return fmt.Errorf("decode header: %w", err)
		}
		if hdr.Version != entryVersion {
			return fmt.Errorf("unsupported entry version %d", hdr.Version)
		}
		if hdr.Key == "" {
			return errors.New("entry header has no key")
		}
		if headerOnly {
			return nil
		}
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		return nil
	}

	var err error
	if isCompressed(path) {
		err = readArchive(path, decode)
	} else {
		err = readPlain(path, decode)
	}
	if err != nil {
		return entryHeader{}, nil, err
	}
	return hdr, val.value(), nil
}

func readPlain(path string, decode func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return decode(f)
}

func readArchive(path string, decode func(io.Reader) error) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != zipMember {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		return decode(rc)
	}
	return fmt.Errorf("archive has no %s member", zipMember)
}

func isCompressed(name string) bool {
	return strings.EqualFold(filepath.Ext(name), extCompressed)
}

// isEntryFile reports whether name looks like an entry file. Hidden files,
// including in-flight temp files, are not.
func isEntryFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case extPlain, extCompressed:
		return true
	default:
		return false
	}
}
