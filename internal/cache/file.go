package cache

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// FileStore keeps one identifier per line. Identifiers that could not be
// read back verbatim are written as Go quoted strings.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading cache file %s: %w", s.Path, err)
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, `"`) {
			id, err := strconv.Unquote(line)
			if err != nil {
				return nil, fmt.Errorf("cache file %s line %d: %w", s.Path, n, err)
			}
			ids = append(ids, id)
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cache file %s: %w", s.Path, err)
	}
	return ids, nil
}

// Save writes ids to a temporary file next to Path and renames it into place.
func (s *FileStore) Save(_ context.Context, ids []string) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("error creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, id := range ids {
		w.WriteString(encodeLine(id))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("error replacing cache file: %w", err)
	}
	return nil
}

func encodeLine(id string) string {
	if id == "" || strings.HasPrefix(id, `"`) || strings.ContainsAny(id, "\r\n") {
		return strconv.Quote(id)
	}
	return id
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._@+-]`)

// AccountPath derives a per-account file from a base cache path,
// e.g. processed_messages.txt becomes processed_messages.me@example.com.txt.
func AccountPath(base, account string) string {
	account = unsafePathChars.ReplaceAllString(strings.ToLower(account), "_")
	if account == "" {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + account + ext
}
