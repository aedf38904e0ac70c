// Package metadata reads embedded audio tags and applies the library's defaulting rules.
//
// Extractors report only what the file carries; zero values mean "absent". Normalize
// turns that raw view into the values a track is stored with.
package metadata

import (
	"errors"
	"io"
)

var ErrUnreadable = errors.New("unreadable audio file")

type Picture struct {
	MIMEType string
	Data     []byte
}

type Tags struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	Year        int
	TrackNumber int
	Duration    float64
	Picture     *Picture
}

type Extractor interface {
	Extract(path string) (Tags, error)
}

type ReaderExtractor interface {
	ExtractFrom(r io.ReadSeeker) (Tags, error)
}

// PictureReader returns the first embedded picture, or nil when the file has none.
type PictureReader interface {
	ReadPicture(path string) (*Picture, error)
}

// PictureChain asks each reader in turn and returns the first picture found. Errors are
// only reported when no reader produced a picture.
type PictureChain []PictureReader

func (c PictureChain) ReadPicture(path string) (*Picture, error) {
	var errs []error
	for _, reader := range c {
		picture, err := reader.ReadPicture(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if picture != nil && len(picture.Data) > 0 {
			return picture, nil
		}
	}

	return nil, errors.Join(errs...)
}
