package updatefile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SQLExtension is the only extension the update routine executes.
const SQLExtension = "sql"

// hookPrefix is prepended to the filename to build a hook name.
const hookPrefix = "updating_"

// File is one entry of the updates directory.
type File struct {
	Name string // "4.2.1.sql": base name, the Update record key
	Path string // full path on disk
	Ext  string // "sql": extension without the dot
}

// IsSQL reports whether the file is a pending SQL script.
func (f File) IsSQL() bool {
	return f.Ext == SQLExtension
}

// HookName returns the name of the post-update hook for the file,
// e.g. "updating_4_2_1_sql" for "4.2.1.sql".
func (f File) HookName() string {
	return HookName(f.Name)
}

// HookName derives the post-update hook name from a filename.
func HookName(filename string) string {
	return hookPrefix + strings.ReplaceAll(filename, ".", "_")
}

// Read returns the file contents and their SHA-256 checksum.
func Read(f File) (string, string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", "", fmt.Errorf("reading update file %s: %w", f.Path, err)
	}

	return string(data), ComputeChecksum(string(data)), nil
}

// Remove deletes the file from the updates directory.
// A file that is already gone is not an error.
func Remove(f File) error {
	if f.Name == "" {
		return nil
	}

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing update file %s: %w", f.Path, err)
	}

	return nil
}

// ComputeChecksum returns the SHA-256 hex digest of the given SQL string.
func ComputeChecksum(sql string) string {
	h := sha256.Sum256([]byte(sql))

	return hex.EncodeToString(h[:])
}

func newFile(dir, name string) File {
	return File{
		Name: name,
		Path: filepath.Join(dir, name),
		Ext:  strings.TrimPrefix(filepath.Ext(name), "."),
	}
}
