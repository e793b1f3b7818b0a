// Package keys loads and maintains the allow-list of secret keys that gate
// sign-in. The list lives in a JSON file holding an array of strings:
//
//	["key1", "key2"]
package keys

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// DefaultPath is where the server looks for the key list unless told otherwise.
const DefaultPath = "keys.json"

// KeyList is an ordered set of accepted secrets.
type KeyList []string

// Contains reports whether secret is in the list. Matching is exact.
func (l KeyList) Contains(secret string) bool {
	return slices.Contains(l, secret)
}

// Add returns a copy of the list with key appended, unless it is already present.
func (l KeyList) Add(key string) KeyList {
	out := slices.Clone(l)
	if out == nil {
		out = KeyList{}
	}
	if !out.Contains(key) {
		out = append(out, key)
	}
	return out
}

// Remove returns a copy of the list without key.
func (l KeyList) Remove(key string) KeyList {
	out := make(KeyList, 0, len(l))
	for _, k := range l {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

// Load reads the key list at path. A missing file or anything other than a
// JSON array of strings is an error.
func Load(path string) (KeyList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key list: %w", err)
	}

	var list KeyList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse key list %s: %w", path, err)
	}
	if list == nil {
		return nil, fmt.Errorf("failed to parse key list %s: expected a JSON array", path)
	}

	return list, nil
}

// Save writes list to path as an indented JSON array, replacing the file atomically.
func Save(path string, list KeyList) error {
	if list == nil {
		list = KeyList{}
	}

	data, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode key list: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".keys-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write key list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write key list: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace key list: %w", err)
	}
	return nil
}

// Generate returns a new random key that is easy to copy onto a whiteboard:
// eight uppercase characters taken from a random UUID.
func Generate() (string, error) {
	id, err := uuid.NewRandomFromReader(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8]), nil
}

// FileSource rereads the key list file on every call, so edits take effect
// without a restart.
type FileSource struct {
	Path string
}

// NewFileSource returns a source reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Keys implements interfaces.KeySource.
func (s *FileSource) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(s.Path)
}
