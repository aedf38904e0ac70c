package coverart

import (
	"context"
	"errors"
	"fmt"

	"musicbox/internal/fileref"
	"musicbox/internal/library"
	"musicbox/internal/metadata"

	"github.com/h2non/filetype"
)

var ErrNoPicture = errors.New("no embedded picture")

const fallbackMIMEType = "image/jpeg"

// Source finds an album's artwork in the file of its first track.
type Source struct {
	tracks   *library.TrackRepository
	resolver fileref.Resolver
	pictures metadata.PictureReader
}

func NewSource(database library.Querier, resolver fileref.Resolver, pictures metadata.PictureReader) *Source {
	return &Source{
		tracks:   library.NewTrackRepository(database),
		resolver: resolver,
		pictures: pictures,
	}
}

// AlbumPicture returns the picture embedded in the album's first track by track number.
// Albums without tracks, unreadable files and files without artwork all yield ErrNoPicture.
func (s *Source) AlbumPicture(ctx context.Context, albumID string) (metadata.Picture, error) {
	track, err := s.tracks.FirstInAlbum(ctx, albumID)
	if errors.Is(err, library.ErrTrackNotFound) {
		return metadata.Picture{}, ErrNoPicture
	}
	if err != nil {
		return metadata.Picture{}, err
	}

	path, err := s.resolver.Resolve(track.FileURL)
	if err != nil {
		return metadata.Picture{}, fmt.Errorf("%w: %v", ErrNoPicture, err)
	}

	picture, err := s.pictures.ReadPicture(path)
	if err != nil {
		return metadata.Picture{}, fmt.Errorf("%w: %v", ErrNoPicture, err)
	}
	if picture == nil || len(picture.Data) == 0 {
		return metadata.Picture{}, ErrNoPicture
	}

	return metadata.Picture{MIMEType: SniffMIMEType(picture.Data, picture.MIMEType), Data: picture.Data}, nil
}

// SniffMIMEType prefers the type detected from the bytes; tag-declared types are often
// missing or wrong.
func SniffMIMEType(data []byte, declared string) string {
	if kind, err := filetype.Match(data); err == nil && filetype.IsImage(data) {
		return kind.MIME.Value
	}
	if declared != "" {
		return declared
	}

	return fallbackMIMEType
}
