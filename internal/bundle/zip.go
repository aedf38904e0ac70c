// Package bundle packs library files into zip archives for download.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
)

type Entry struct {
	// Name is the slash-separated path inside the archive.
	Name string
	// Path is the file on disk.
	Path string
}

// EntryName joins parts into an archive path. Separators inside a part are replaced so
// an artist such as "AC/DC" stays one directory.
func EntryName(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimSpace(part))
		if part == "" || part == "." || part == ".." {
			part = "_"
		}
		cleaned = append(cleaned, part)
	}

	return path.Join(cleaned...)
}

// WriteZip streams the entries into w and reports how many files were written. Files
// that vanished from disk are skipped; any other failure aborts the archive.
func WriteZip(w io.Writer, entries []Entry, logger *slog.Logger) (int, error) {
	archive := zip.NewWriter(w)
	seen := make(map[string]int, len(entries))

	written := 0
	for _, entry := range entries {
		err := addFile(archive, uniqueName(seen, entry.Name), entry.Path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("skipping missing file in archive", "file", entry.Path)
			continue
		}
		if err != nil {
			_ = archive.Close()
			return written, err
		}
		written++
	}

	if err := archive.Close(); err != nil {
		return written, fmt.Errorf("finish archive: %w", err)
	}

	return written, nil
}

func addFile(archive *zip.Writer, name string, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filePath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", filePath, fs.ErrNotExist)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("archive header for %s: %w", filePath, err)
	}
	header.Name = name
	header.Method = zip.Store

	dst, err := archive.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		return fmt.Errorf("copy %s into archive: %w", filePath, err)
	}

	return nil
}

// uniqueName suffixes repeated names so extraction never overwrites an earlier entry.
func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}

	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), seen[name], ext)
	seen[candidate]++
	return candidate
}
