// Package ndjson stores newline-delimited JSON files under a root directory.
// Files are append-only: each Append is written with a single write call on
// an O_APPEND descriptor, so concurrent readers never observe interleaved
// batches, and a partially written trailing line is ignored on read.
package ndjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// Dir is a root directory of NDJSON files addressed by relative path.
type Dir struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open creates root if needed and returns a Dir over it.
func Open(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("ndjson: root is empty")
	}
	if err := os.MkdirAll(root, defaultDirMode); err != nil {
		return nil, fmt.Errorf("ndjson: mkdir: %w", err)
	}
	return &Dir{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the directory the files live under.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the absolute location of rel.
func (d *Dir) Path(rel string) string {
	return filepath.Join(d.root, rel)
}

func (d *Dir) lockFor(rel string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[rel]
	if !ok {
		l = &sync.Mutex{}
		d.locks[rel] = l
	}
	return l
}

// Encode marshals items as one JSON document per line.
func Encode[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	for i := range items {
		line, err := json.Marshal(items[i])
		if err != nil {
			return nil, fmt.Errorf("ndjson: marshal entry: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Append writes the encoded items to rel in one write, creating the file
// and its parent directories on demand.
func Append[T any](d *Dir, rel string, items []T) error {
	if len(items) == 0 {
		return nil
	}
	payload, err := Encode(items)
	if err != nil {
		return err
	}
	return d.AppendRaw(rel, payload)
}

// AppendRaw writes pre-encoded newline-terminated lines to rel.
func (d *Dir) AppendRaw(rel string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	path := d.Path(rel)

	l := d.lockFor(rel)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return fmt.Errorf("ndjson: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("ndjson: open: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("ndjson: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("ndjson: sync: %w", err)
	}
	return f.Close()
}

// ReadLines returns every complete line of rel in file order.
// A missing file yields no lines and no error.
func (d *Dir) ReadLines(rel string) ([][]byte, error) {
	data, err := os.ReadFile(d.Path(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ndjson: read: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	// Ignore a potentially partial trailing line.
	if last := bytes.LastIndexByte(data, '\n'); last < len(data)-1 {
		data = data[:last+1]
	}

	lines := bytes.Split(data, []byte{'\n'})
	out := lines[:0]
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// RemoveAll deletes rel and everything below it.
func (d *Dir) RemoveAll(rel string) error {
	l := d.lockFor(rel)
	l.Lock()
	defer l.Unlock()

	if err := os.RemoveAll(d.Path(rel)); err != nil {
		return fmt.Errorf("ndjson: remove: %w", err)
	}
	return nil
}
