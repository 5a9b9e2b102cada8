// Package filestore reads and writes the JSON documents that make up the
// on-disk session and context trees.
package filestore

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrMissing is returned by Load when the path does not exist.
var ErrMissing = stderrors.New("document missing")

// ParseError reports a document that exists but is not valid JSON
// (or does not fit the target type).
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is (or wraps) a *ParseError.
func IsParseError(err error) bool {
	var pErr *ParseError
	return stderrors.As(err, &pErr)
}

// Encode serializes v as indented JSON. Non-ASCII text and HTML characters
// are written literally.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes v to path as pretty-printed JSON, creating parent directories.
// The document is written to a temp file in the same directory and renamed
// into place, so readers never observe a partially written file.
func Save(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data, creating parent directories.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generate temp file name: %w", err)
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create %s: %w", tempPath, err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	file = nil

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	success = true
	return nil
}

// Load decodes the JSON document at path into v.
// Returns ErrMissing if the path does not exist and a *ParseError if the
// content cannot be decoded. Other I/O errors are returned as-is.
func Load(path string, v any) error {
	file, err := openFileNoFollowRead(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return ErrMissing
		}
		return err
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(buf.Bytes(), v); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// LoadMap decodes the JSON object at path into a generic map.
func LoadMap(path string) (map[string]any, error) {
	var m map[string]any
	if err := Load(path, &m); err != nil {
		return nil, err
	}
	if m == nil {
		// A literal null decodes without error but is not a document.
		return nil, &ParseError{Path: path, Err: stderrors.New("document is null")}
	}
	return m, nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
