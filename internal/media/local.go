package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore keeps images under a directory served at baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media directory")
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory the store writes to.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) url(folder, name string) string {
	return s.baseURL + "/" + folder + "/" + name
}

// Upload writes content to folder/name, replacing any file of that name.
func (s *LocalStore) Upload(_ context.Context, folder, name string, content io.Reader, contentType string) (string, error) {
	folder, name, err := names(folder, name)
	if err != nil {
		return "", err
	}
	body, _, err := sniff(content, contentType)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating folder")
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "writing file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "closing file")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "placing file")
	}
	return s.url(folder, name), nil
}

// List returns the URLs of every image in folder, sorted by name. A
// missing folder is empty.
func (s *LocalStore) List(_ context.Context, folder string) ([]string, error) {
	folder, err := FolderName(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, folder))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading folder")
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	urls := make([]string, 0, len(files))
	for _, f := range files {
		urls = append(urls, s.url(folder, f))
	}
	return urls, nil
}
