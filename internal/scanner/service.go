package scanner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"musicbox/internal/fileref"
	"musicbox/internal/library"
	"musicbox/internal/metadata"

	"github.com/samber/lo"
)

var defaultExtensions = []string{".mp3"}

type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type Result struct {
	Added      int         `json:"added"`
	Pruned     int         `json:"pruned"`
	TotalFound int         `json:"totalFound"`
	Errors     []FileError `json:"errors,omitempty"`
}

type Status struct {
	Running    bool   `json:"running"`
	LastRunAt  string `json:"lastRunAt"`
	LastError  string `json:"lastError,omitempty"`
	LastAdded  int    `json:"lastAdded"`
	LastPruned int    `json:"lastPruned"`
	LastFound  int    `json:"lastFound"`
	LastErrors int    `json:"lastErrors"`
}

type Option func(*Service)

// WithExtensions replaces the default ".mp3" scan filter.
func WithExtensions(extensions ...string) Option {
	return func(s *Service) {
		if len(extensions) == 0 {
			return
		}
		s.extensions = lo.SliceToMap(extensions, func(ext string) (string, struct{}) {
			return strings.ToLower(ext), struct{}{}
		})
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service owns every write the sync engine makes. Sync, RemoveFile and the delete
// operations hold runMu for their whole duration, so a watcher-triggered run never
// interleaves with a manual one.
type Service struct {
	runMu sync.Mutex

	mu         sync.Mutex
	running    bool
	lastRun    time.Time
	lastError  string
	lastResult Result

	db           *sql.DB
	resolver     fileref.Resolver
	extractor    metadata.Extractor
	uploadParser metadata.ReaderExtractor
	covers       CoverStore
	extensions   map[string]struct{}
	now          func() time.Time
	logger       *slog.Logger
}

func NewService(
	database *sql.DB,
	resolver fileref.Resolver,
	extractor metadata.Extractor,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		db:           database,
		resolver:     resolver,
		extractor:    extractor,
		uploadParser: metadata.TagReader{},
		now:          time.Now,
		logger:       logger.With("component", "scanner"),
	}
	WithExtensions(defaultExtensions...)(s)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) Root() string {
	return s.resolver.Root()
}

// Supports reports whether the scanner ingests files with this path's extension.
func (s *Service) Supports(path string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:    s.running,
		LastError:  s.lastError,
		LastAdded:  s.lastResult.Added,
		LastPruned: s.lastResult.Pruned,
		LastFound:  s.lastResult.TotalFound,
		LastErrors: len(s.lastResult.Errors),
	}
	if !s.lastRun.IsZero() {
		status.LastRunAt = s.lastRun.UTC().Format(time.RFC3339)
	}

	return status
}

// Sync prunes tracks whose files vanished and ingests files not yet in the library.
// Per-file failures are collected in Result.Errors; the returned error is reserved for
// runs that could not proceed at all.
func (s *Service) Sync(ctx context.Context) (Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.setRunning(true)
	started := time.Now()
	result, err := s.performSync(ctx)
	s.finishRun(result, err)

	if err != nil {
		s.logger.Error("sync failed", "error", err)
		return Result{}, err
	}

	s.logger.Info(
		"sync complete",
		"added", result.Added,
		"pruned", result.Pruned,
		"found", result.TotalFound,
		"errors", len(result.Errors),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	return result, nil
}

func (s *Service) performSync(ctx context.Context) (Result, error) {
	root := s.resolver.Root()
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		s.logger.Warn("music directory not found, nothing to sync", "root", root)
		return Result{}, nil
	}

	result := Result{}

	pruned, err := s.prune(ctx)
	if err != nil {
		return Result{}, err
	}
	result.Pruned = pruned

	files, walkErrors := s.discover(root)
	result.TotalFound = len(files)
	result.Errors = append(result.Errors, walkErrors...)

	storedURLs, err := library.NewTrackRepository(s.db).ListFileURLs(ctx)
	if err != nil {
		return Result{}, err
	}
	existing := lo.Keyify(storedURLs)

	albums := newReconciler()
	for _, path := range files {
		ref, refErr := s.resolver.Ref(path)
		if refErr != nil {
			result.Errors = append(result.Errors, FileError{File: path, Error: refErr.Error()})
			continue
		}

		if _, ok := existing[ref]; ok {
			continue
		}

		added, ingestErr := s.ingest(ctx, albums, path, ref, "")
		if ingestErr != nil {
			s.logger.Warn("failed to ingest file", "file", path, "error", ingestErr)
			result.Errors = append(result.Errors, FileError{File: path, Error: ingestErr.Error()})
			continue
		}
		if added {
			existing[ref] = struct{}{}
			result.Added++
		}
	}

	return result, nil
}

// prune deletes tracks whose backing file no longer exists, then albums left empty.
func (s *Service) prune(ctx context.Context) (int, error) {
	tracks := library.NewTrackRepository(s.db)

	stored, err := tracks.List(ctx)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, track := range stored {
		path, resolveErr := s.resolver.Resolve(track.FileURL)
		if resolveErr != nil {
			s.logger.Warn("skipping track with unresolvable file reference", "track", track.ID, "fileUrl", track.FileURL, "error", resolveErr)
			continue
		}

		if _, statErr := os.Stat(path); statErr == nil {
			continue
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			s.logger.Warn("cannot stat track file, keeping track", "file", path, "error", statErr)
			continue
		}

		if deleteErr := tracks.Delete(ctx, track.ID); deleteErr != nil {
			s.logger.Error("failed to prune track", "track", track.ID, "file", path, "error", deleteErr)
			continue
		}

		pruned++
		s.logger.Info("pruned track", "title", track.Title, "fileUrl", track.FileURL)
	}

	emptied, err := library.NewAlbumRepository(s.db).DeleteEmpty(ctx)
	if err != nil {
		s.logger.Error("failed to delete empty albums", "error", err)
	} else if emptied > 0 {
		s.logger.Info("removed empty albums", "count", emptied)
	}

	return pruned, nil
}

// discover lists supported files under root. Unreadable directories are reported and skipped.
// WalkDir does not descend into a root that is itself a symlink, so the root is resolved first.
func (s *Service) discover(root string) ([]string, []FileError) {
	files := make([]string, 0)
	walkErrors := make([]FileError, 0)

	if canonical, err := filepath.EvalSymlinks(root); err == nil {
		root = canonical
	}

	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			walkErrors = append(walkErrors, FileError{File: path, Error: walkErr.Error()})
			if entry != nil && entry.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}

		if entry.IsDir() || !s.Supports(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, walkErrors
}

// ingest stores one file. The album upsert and track insert share a transaction so a
// failed file never leaves a fresh empty album behind. A non-empty coverURL becomes the
// cover of an album this file creates.
func (s *Service) ingest(ctx context.Context, albums *reconciler, path string, ref string, coverURL string) (bool, error) {
	tags, err := s.extractor.Extract(path)
	if err != nil {
		return false, err
	}
	normalized := metadata.Normalize(tags, path, s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	year := normalized.Year
	albumID, err := albums.resolve(ctx, tx, normalized.MainArtist, normalized.Album, &year, coverURL)
	if err != nil {
		return false, err
	}

	track := library.Track{
		Title:       normalized.Title,
		Artist:      normalized.Artist,
		Features:    normalized.Features,
		Genre:       normalized.Genre,
		FileURL:     ref,
		Duration:    normalized.Duration,
		TrackNumber: normalized.TrackNumber,
		AlbumID:     albumID,
	}
	inserted, err := library.NewTrackRepository(tx).Create(ctx, &track)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit ingest tx: %w", err)
	}
	tx = nil
	albums.remember(normalized.MainArtist, normalized.Album, albumID)

	if inserted {
		s.logger.Debug("added track", "title", track.Title, "artist", normalized.MainArtist, "fileUrl", ref)
	}

	return inserted, nil
}

// RemoveFile drops the track backed by path and its album when that was the last track.
// It reports false when no track references the file.
func (s *Service) RemoveFile(ctx context.Context, path string) (bool, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ref, err := s.resolver.Ref(path)
	if err != nil {
		return false, err
	}

	track, err := library.NewTrackRepository(s.db).GetByFileURL(ctx, ref)
	if errors.Is(err, library.ErrTrackNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	albumRemoved, err := s.deleteTrackRow(ctx, track)
	if err != nil {
		return false, err
	}

	s.logger.Info("removed track", "title", track.Title, "fileUrl", ref, "albumRemoved", albumRemoved)
	return true, nil
}

func (s *Service) deleteTrackRow(ctx context.Context, track library.Track) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := library.NewTrackRepository(tx).Delete(ctx, track.ID); err != nil {
		return false, err
	}

	albumRemoved, err := library.NewAlbumRepository(tx).DeleteIfEmpty(ctx, track.AlbumID)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete tx: %w", err)
	}
	tx = nil

	return albumRemoved, nil
}

func (s *Service) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

func (s *Service) finishRun(result Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if err != nil {
		s.lastError = err.Error()
		return
	}

	s.lastError = ""
	s.lastRun = time.Now().UTC()
	s.lastResult = result
}
