package fake

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"larkmcp/internal/domain"
)

// Store is an in-memory bucket. Sorting is plain lexical.
type Store struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error
	Ops     []string
}

var _ domain.ObjectStore = (*Store)(nil)

func NewStore(objects map[string]string) *Store {
	s := &Store{Objects: map[string][]byte{}}
	for k, v := range objects {
		s.Objects[k] = []byte(v)
	}
	return s
}

func (s *Store) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ops = append(s.Ops, op)
	return s.Err
}

func (s *Store) keys(prefix string, sorted bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.Objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	if sorted {
		sort.Strings(out)
	}
	return out
}

func (s *Store) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Objects[key]
	return b, ok
}

func (s *Store) put(key string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[key] = b
}

func (s *Store) write(key, dest string) error {
	b, ok := s.get(key)
	if !ok {
		return fmt.Errorf("no such key %s", key)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, b, 0o644)
}

func (s *Store) DownloadFile(_ context.Context, key, rootDir string) (string, error) {
	if err := s.record("download_file"); err != nil {
		return "", err
	}
	dest := filepath.Join(rootDir, filepath.FromSlash(key))
	return dest, s.write(key, dest)
}

func (s *Store) DownloadFilesWithPrefix(ctx context.Context, prefix, rootDir string) ([]string, error) {
	if err := s.record("download_files_with_prefix"); err != nil {
		return nil, err
	}
	var paths []string
	for _, k := range s.keys(prefix, true) {
		dest := filepath.Join(rootDir, filepath.FromSlash(k))
		if err := s.write(k, dest); err != nil {
			return paths, err
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

func (s *Store) ListAllKeys(_ context.Context, sorted bool) ([]string, error) {
	if err := s.record("list_all_keys"); err != nil {
		return nil, err
	}
	return s.keys("", sorted), nil
}

func (s *Store) ListKeysWithPrefix(_ context.Context, prefix string, sorted bool) ([]string, error) {
	if err := s.record("list_keys_with_prefix"); err != nil {
		return nil, err
	}
	return s.keys(prefix, sorted), nil
}

func (s *Store) UploadFile(_ context.Context, key, p string) error {
	if err := s.record("upload_file"); err != nil {
		return err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	s.put(key, b)
	return nil
}

func (s *Store) UploadText(_ context.Context, key, text string) error {
	if err := s.record("upload_text"); err != nil {
		return err
	}
	s.put(key, []byte(text))
	return nil
}

func (s *Store) UploadImage(_ context.Context, key, p string) error {
	if err := s.record("upload_image"); err != nil {
		return err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	s.put(key, b)
	return nil
}

func (s *Store) DeleteFile(_ context.Context, key string) error {
	if err := s.record("delete_file"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Objects, key)
	return nil
}

func (s *Store) DeleteFilesWithPrefix(_ context.Context, prefix string) (int, error) {
	if err := s.record("delete_files_with_prefix"); err != nil {
		return 0, err
	}
	keys := s.keys(prefix, false)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.Objects, k)
	}
	return len(keys), nil
}

func (s *Store) UploadDirectory(_ context.Context, localPath, prefix string) ([]string, error) {
	if err := s.record("upload_directory"); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(localPath, p)
		key := path.Join(prefix, filepath.ToSlash(rel))
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		s.put(key, b)
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

func (s *Store) DownloadDirectory(_ context.Context, prefix, localPath string) ([]string, error) {
	if err := s.record("download_directory"); err != nil {
		return nil, err
	}
	var paths []string
	for _, k := range s.keys(prefix, true) {
		rel := strings.TrimLeft(strings.TrimPrefix(k, prefix), "/")
		dest := filepath.Join(localPath, filepath.FromSlash(rel))
		if err := s.write(k, dest); err != nil {
			return paths, err
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

func (s *Store) ListDirectoryContents(_ context.Context, prefix string, sorted bool) ([]domain.DirEntry, error) {
	if err := s.record("list_directory_contents"); err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	seen := map[string]bool{}
	var out []domain.DirEntry
	for _, k := range s.keys(prefix, sorted) {
		name, _, isDir := strings.Cut(strings.TrimPrefix(k, prefix), "/")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, domain.DirEntry{Name: name, IsDir: isDir})
	}
	return out, nil
}
