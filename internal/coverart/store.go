package coverart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/h2non/filetype"
)

var ErrNotImage = errors.New("not an image")

var ErrUploadNotFound = errors.New("upload not found")

// UploadsPrefix is the public route uploaded images are served under.
const UploadsPrefix = "/uploads/"

var uploadNamePattern = regexp.MustCompile(`^[0-9a-f]{64}\.[a-z0-9]+$`)

// Store keeps uploaded images (explicit album covers, artist photos) on disk under their
// content hash, so the same picture uploaded twice is stored once.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes data unless an identical file is already stored and returns its public URL.
func (s *Store) Save(data []byte) (string, error) {
	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return "", ErrNotImage
	}

	name := HashPicture(data) + "." + kind.Extension
	target := filepath.Join(s.dir, name)
	if info, err := os.Stat(target); err == nil && info.Size() == int64(len(data)) {
		return UploadsPrefix + name, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create upload temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write upload: %w", errors.Join(writeErr, closeErr))
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("store upload: %w", err)
	}

	return UploadsPrefix + name, nil
}

// Path maps a stored upload name back to its file. Names are only ever ones Save produced.
func (s *Store) Path(name string) (string, error) {
	if !uploadNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrUploadNotFound, name)
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %q", ErrUploadNotFound, name)
	}

	return path, nil
}
