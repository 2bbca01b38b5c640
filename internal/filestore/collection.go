// Package filestore keeps one JSON array per logical collection on disk.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var (
	locksMu sync.Mutex
	locks   = map[string]*sync.Mutex{}
)

// lockFor returns the process wide mutex guarding path so every Collection
// opened on the same file shares it.
func lockFor(path string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	if l, ok := locks[path]; ok {
		return l
	}
	l := &sync.Mutex{}
	locks[path] = l
	return l
}

// Collection is a file holding a JSON array of T.
type Collection[T any] struct {
	path string
	mu   *sync.Mutex
}

// Open prepares dir and returns the collection stored in dir/name.json.
func Open[T any](dir, name string) (*Collection[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, err
	}
	return &Collection[T]{path: path, mu: lockFor(path)}, nil
}

// Path returns the backing file.
func (c *Collection[T]) Path() string {
	return c.path
}

// Load returns every record. A missing file is an empty collection.
func (c *Collection[T]) Load() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

// Update runs a read-modify-write cycle under the file lock. When fn returns
// an error nothing is written.
func (c *Collection[T]) Update(fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.read()
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err != nil {
		return err
	}
	return c.write(next)
}

func (c *Collection[T]) read() ([]T, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", filepath.Base(c.path), err)
	}
	if len(raw) == 0 {
		return []T{}, nil
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(c.path), err)
	}
	return records, nil
}

// write replaces the file atomically through a temp file in the same dir.
func (c *Collection[T]) write(records []T) error {
	if records == nil {
		records = []T{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", filepath.Base(c.path), err)
	}
	return nil
}
