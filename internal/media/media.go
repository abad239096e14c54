// Package media stores family pictures in per-folder image libraries,
// either on local disk or in an S3 bucket.
package media

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedType is returned for uploads that are not images.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrInvalidName is returned when a folder or file name slugs to nothing.
	ErrInvalidName = errors.New("invalid media name")
)

var imageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/svg+xml"}

// Store uploads images into folders and lists them by URL.
type Store interface {
	Upload(ctx context.Context, folder, name string, content io.Reader, contentType string) (string, error)
	List(ctx context.Context, folder string) ([]string, error)
}

// FolderName turns a display name such as a family name into the folder
// key used by every Store.
func FolderName(name string) (string, error) {
	s := slug.Make(name)
	if s == "" {
		return "", errors.Wrapf(ErrInvalidName, "folder %q", name)
	}
	return s, nil
}

// FileName slugs the base of name and keeps its lower-cased extension.
func FileName(name string) (string, error) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(path.Ext(name))
	base := slug.Make(strings.TrimSuffix(name, path.Ext(name)))
	if base == "" {
		return "", errors.Wrapf(ErrInvalidName, "file %q", name)
	}
	return base + ext, nil
}

// sniff resolves the content type of an upload, reading ahead when none
// was declared. The returned reader yields the full content.
func sniff(content io.Reader, declared string) (io.Reader, string, error) {
	ct := strings.TrimSpace(strings.Split(declared, ";")[0])
	br := bufio.NewReaderSize(content, 512)
	if ct == "" || ct == "application/octet-stream" {
		head, err := br.Peek(512)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, "", errors.Wrap(err, "reading upload")
		}
		ct = http.DetectContentType(head)
		ct = strings.TrimSpace(strings.Split(ct, ";")[0])
	}
	if !slices.Contains(imageTypes, ct) {
		return nil, "", errors.Wrapf(ErrUnsupportedType, "%q", ct)
	}
	return br, ct, nil
}

func names(folder, name string) (string, string, error) {
	f, err := FolderName(folder)
	if err != nil {
		return "", "", err
	}
	n, err := FileName(name)
	if err != nil {
		return "", "", err
	}
	return f, n, nil
}
