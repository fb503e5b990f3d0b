// Package files stores uploaded message attachments and profile images on
// local disk under a single upload root, and maps them to the public paths
// served by the HTTP API.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrBadPath is returned for public paths that do not resolve inside the
// upload root.
var ErrBadPath = errors.New("files: path outside upload root")

// Storage writes uploads beneath a root directory. Attachments go to
// files/<timestamp>/<name> and profile images to profiles/<timestamp>-<name>,
// where the timestamp keeps successive uploads of the same filename apart.
type Storage struct {
	root string
}

// NewStorage creates the upload root (and its files/ and profiles/
// subdirectories) if needed.
func NewStorage(root string) (*Storage, error) {
	for _, dir := range []string{filepath.Join(root, "files"), filepath.Join(root, "profiles")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("files: create upload dir: %w", err)
		}
	}
	return &Storage{root: root}, nil
}

// SaveAttachment stores a message attachment and returns its public path,
// e.g. "files/1712345678901/report.pdf".
func (s *Storage) SaveAttachment(filename string, r io.Reader) (string, error) {
	name := sanitize(filename)
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	dir := filepath.Join(s.root, "files", stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("files: create attachment dir: %w", err)
	}
	if err := writeFile(filepath.Join(dir, name), r); err != nil {
		return "", err
	}
	return path.Join("files", stamp, name), nil
}

// SaveProfileImage stores a profile image and returns its public path,
// e.g. "profiles/1712345678901-avatar.png".
func (s *Storage) SaveProfileImage(filename string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitize(filename))
	if err := writeFile(filepath.Join(s.root, "profiles", name), r); err != nil {
		return "", err
	}
	return path.Join("profiles", name), nil
}

// Remove deletes the file behind a public path previously returned by one of
// the Save methods. Paths that escape the upload root are rejected.
func (s *Storage) Remove(publicPath string) error {
	full := filepath.Join(s.root, filepath.FromSlash(publicPath))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ErrBadPath
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("files: remove %s: %w", publicPath, err)
	}
	return nil
}

// Root returns the upload root directory, for serving it statically.
func (s *Storage) Root() string {
	return s.root
}

func writeFile(dst string, r io.Reader) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("files: create %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("files: write %s: %w", dst, err)
	}
	return nil
}

// sanitize strips any directory components from a client-supplied filename.
func sanitize(filename string) string {
	name := filepath.Base(filepath.FromSlash(filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "upload"
	}
	return name
}
