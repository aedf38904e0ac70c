package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// TagReader parses ID3, MP4, FLAC and Ogg tags from a stream. It works on in-memory
// buffers as well as files but cannot report duration.
type TagReader struct{}

func (r TagReader) Extract(path string) (Tags, error) {
	file, err := os.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("%w: open %s: %v", ErrUnreadable, path, err)
	}
	defer file.Close()

	return r.ExtractFrom(file)
}

func (r TagReader) ExtractBytes(data []byte) (Tags, error) {
	return r.ExtractFrom(bytes.NewReader(data))
}

func (TagReader) ExtractFrom(rs io.ReadSeeker) (Tags, error) {
	parsed, err := tag.ReadFrom(rs)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return Tags{}, nil
	}
	if err != nil {
		return Tags{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	trackNumber, _ := parsed.Track()
	tags := Tags{
		Title:       strings.TrimSpace(parsed.Title()),
		Artist:      strings.TrimSpace(parsed.Artist()),
		Album:       strings.TrimSpace(parsed.Album()),
		Genre:       strings.TrimSpace(parsed.Genre()),
		Year:        parsed.Year(),
		TrackNumber: trackNumber,
	}

	if picture := parsed.Picture(); picture != nil && len(picture.Data) > 0 {
		tags.Picture = &Picture{MIMEType: picture.MIMEType, Data: picture.Data}
	}

	return tags, nil
}

func (r TagReader) ReadPicture(path string) (*Picture, error) {
	tags, err := r.Extract(path)
	if err != nil {
		return nil, err
	}

	return tags.Picture, nil
}
