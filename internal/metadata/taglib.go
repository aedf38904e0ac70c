package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.senan.xyz/taglib"
)

var leadingIntegerPattern = regexp.MustCompile(`\d+`)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Taglib reads tags and audio properties through TagLib. It handles every container
// TagLib knows, which is what lets the scan extension list be widened by configuration.
type Taglib struct{}

func (Taglib) Extract(path string) (Tags, error) {
	values, err := taglib.ReadTags(path)
	if err != nil {
		return Tags{}, fmt.Errorf("%w: read tags %s: %v", ErrUnreadable, path, err)
	}

	tags := Tags{
		Title:       firstTagValue(values, taglib.Title, "TITLE"),
		Artist:      firstTagValue(values, taglib.Artist, "ARTIST"),
		Album:       firstTagValue(values, taglib.Album, "ALBUM"),
		Genre:       firstTagValue(values, taglib.Genre, "GENRE"),
		TrackNumber: parseNumericTag(firstTagValue(values, taglib.TrackNumber, "TRACKNUMBER", "TRCK")),
		Year:        parseYearTag(firstTagValue(values, taglib.Date, "DATE", "YEAR", "ORIGINALDATE", "RELEASEDATE")),
	}

	properties, err := taglib.ReadProperties(path)
	if err != nil {
		return Tags{}, fmt.Errorf("%w: read properties %s: %v", ErrUnreadable, path, err)
	}
	if properties.Length > 0 {
		tags.Duration = properties.Length.Seconds()
	}

	return tags, nil
}

func (Taglib) ReadPicture(path string) (*Picture, error) {
	properties, err := taglib.ReadProperties(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read properties %s: %v", ErrUnreadable, path, err)
	}
	if len(properties.Images) == 0 {
		return nil, nil
	}

	return readTaglibPicture(path, properties.Images[0].MIMEType)
}

func readTaglibPicture(path string, mimeType string) (*Picture, error) {
	data, err := taglib.ReadImage(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read image %s: %v", ErrUnreadable, path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	return &Picture{MIMEType: strings.TrimSpace(mimeType), Data: data}, nil
}

func firstTagValue(tags map[string][]string, keys ...string) string {
	for _, key := range keys {
		values, ok := tags[key]
		if !ok {
			continue
		}
		for _, value := range values {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}

	return ""
}

// parseNumericTag reads "3", "03/12" or "3 of 12" as 3.
func parseNumericTag(value string) int {
	match := leadingIntegerPattern.FindString(strings.TrimSpace(value))
	if match == "" {
		return 0
	}

	parsed, err := strconv.Atoi(match)
	if err != nil || parsed <= 0 {
		return 0
	}

	return parsed
}

func parseYearTag(value string) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}

	match := yearPattern.FindString(trimmed)
	if match == "" {
		if fallback := parseNumericTag(trimmed); fallback >= 1000 && fallback <= 3000 {
			return fallback
		}
		return 0
	}

	parsed, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}

	return parsed
}
