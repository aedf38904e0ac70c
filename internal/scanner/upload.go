package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"musicbox/internal/library"
	"musicbox/internal/metadata"
)

var ErrUnsupportedUpload = errors.New("unsupported file type")

// partialSuffix marks files still being written; no scan extension ever matches it.
const partialSuffix = ".part"

var unsafeNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// CoverStore keeps pictures supplied with uploads and returns their public URL.
type CoverStore interface {
	Save(data []byte) (string, error)
}

// WithUploadParser sets how an upload's tags are read before it has a place on disk.
func WithUploadParser(parser metadata.ReaderExtractor) Option {
	return func(s *Service) {
		s.uploadParser = parser
	}
}

// WithCoverStore enables explicit covers for albums created by uploads.
func WithCoverStore(store CoverStore) Option {
	return func(s *Service) {
		s.covers = store
	}
}

type Upload struct {
	Name string
	Data []byte
}

// Import places an uploaded audio file at <main artist>/<album>/<name> under the music
// root and ingests it. When the upload creates its album and carries an embedded
// picture, that picture is stored and becomes the album's explicit cover.
func (s *Service) Import(ctx context.Context, upload Upload) (library.Track, error) {
	name := safeSegment(filepath.Base(upload.Name))
	if !s.Supports(name) {
		return library.Track{}, fmt.Errorf("%w: %s", ErrUnsupportedUpload, upload.Name)
	}

	tags, err := s.uploadParser.ExtractFrom(bytes.NewReader(upload.Data))
	if err != nil {
		return library.Track{}, err
	}
	placement := metadata.Normalize(tags, name, s.now())

	s.runMu.Lock()
	defer s.runMu.Unlock()

	dir := filepath.Join(s.resolver.Root(), safeSegment(placement.MainArtist), safeSegment(placement.Album))
	target, err := writeUpload(dir, name, upload.Data)
	if err != nil {
		return library.Track{}, err
	}

	ref, err := s.resolver.Ref(target)
	if err != nil {
		_ = os.Remove(target)
		return library.Track{}, err
	}

	coverURL := ""
	if tags.Picture != nil && len(tags.Picture.Data) > 0 && s.covers != nil {
		coverURL, err = s.covers.Save(tags.Picture.Data)
		if err != nil {
			s.logger.Warn("failed to store uploaded cover, using embedded artwork endpoint", "file", target, "error", err)
			coverURL = ""
		}
	}

	if _, err := s.ingest(ctx, newReconciler(), target, ref, coverURL); err != nil {
		_ = os.Remove(target)
		return library.Track{}, err
	}

	track, err := library.NewTrackRepository(s.db).GetByFileURL(ctx, ref)
	if err != nil {
		return library.Track{}, err
	}

	s.logger.Info("imported upload", "title", track.Title, "fileUrl", ref, "explicitCover", coverURL != "")
	return track, nil
}

// writeUpload stores data under dir without overwriting an existing file; a taken name
// gets a " (n)" suffix.
func writeUpload(dir string, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*"+partialSuffix)
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

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for attempt := 1; ; attempt++ {
		target := filepath.Join(dir, name)
		if attempt > 1 {
			target = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, attempt, ext))
		}

		if _, err := os.Lstat(target); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(tmpPath)
			return "", fmt.Errorf("check upload target: %w", err)
		}

		if err := os.Rename(tmpPath, target); err != nil {
			_ = os.Remove(tmpPath)
			return "", fmt.Errorf("store upload: %w", err)
		}
		return target, nil
	}
}

// safeSegment turns a tag value into a single path element.
func safeSegment(value string) string {
	cleaned := strings.Trim(unsafeNameChars.ReplaceAllString(value, "_"), " .")
	if cleaned == "" {
		return "_"
	}

	return cleaned
}
