package metadata

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

var featuringPattern = regexp.MustCompile(`(?i)\s*[(\[]?\s*\b(?:feat\.|ft\.|featuring\s)\s*(.+?)\s*[)\]]?\s*$`)

var artistSeparatorPattern = regexp.MustCompile(`[,/]`)

type Track struct {
	Title       string
	Artist      string
	MainArtist  string
	Features    string
	Album       string
	Genre       string
	Year        int
	TrackNumber int
	Duration    float64
}

// Normalize fills absent tags: title from the file name, placeholder artist and album,
// the current year, zero duration and track number.
func Normalize(tags Tags, filePath string, now time.Time) Track {
	title := strings.TrimSpace(tags.Title)
	if title == "" {
		base := filepath.Base(filePath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	artist := strings.TrimSpace(tags.Artist)
	if artist == "" {
		artist = UnknownArtist
	}
	mainArtist, features := ParseArtist(artist)

	album := strings.TrimSpace(tags.Album)
	if album == "" {
		album = UnknownAlbum
	}

	year := tags.Year
	if year <= 0 {
		year = now.Year()
	}

	duration := tags.Duration
	if duration < 0 {
		duration = 0
	}

	trackNumber := tags.TrackNumber
	if trackNumber < 0 {
		trackNumber = 0
	}

	return Track{
		Title:       title,
		Artist:      artist,
		MainArtist:  mainArtist,
		Features:    features,
		Album:       album,
		Genre:       strings.TrimSpace(tags.Genre),
		Year:        year,
		TrackNumber: trackNumber,
		Duration:    duration,
	}
}

// ParseArtist splits a raw artist tag into the album-grouping main artist and the
// trailing featured-artist clause.
//
//	"Alice, Bob"          -> "Alice", ""
//	"Alice feat. Bob"     -> "Alice", "Bob"
//	"Alice / Eve (ft. X)" -> "Alice", "X"
func ParseArtist(raw string) (mainArtist string, features string) {
	head := strings.TrimSpace(raw)

	if loc := featuringPattern.FindStringSubmatchIndex(head); loc != nil {
		features = strings.TrimSpace(head[loc[2]:loc[3]])
		if trimmed := strings.TrimSpace(head[:loc[0]]); trimmed != "" {
			head = trimmed
		} else {
			features = ""
		}
	}

	for _, segment := range artistSeparatorPattern.Split(head, -1) {
		if trimmed := strings.TrimSpace(segment); trimmed != "" {
			return trimmed, features
		}
	}

	return UnknownArtist, features
}
