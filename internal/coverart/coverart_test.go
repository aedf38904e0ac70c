package coverart

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"musicbox/internal/db"
	"musicbox/internal/fileref"
	"musicbox/internal/library"
	"musicbox/internal/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width int, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type stubPictures map[string]*metadata.Picture

func (s stubPictures) ReadPicture(path string) (*metadata.Picture, error) {
	picture, ok := s[filepath.Base(path)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return picture, nil
}

func TestNormalizeVariant(t *testing.T) {
	t.Parallel()

	assert.Equal(t, VariantOriginal, NormalizeVariant(""))
	assert.Equal(t, VariantOriginal, NormalizeVariant("huge"))
	assert.Equal(t, VariantGrid, NormalizeVariant(" GRID "))

	spec, ok := SpecFor("player")
	require.True(t, ok)
	assert.Equal(t, 96, spec.Size)

	_, ok = SpecFor("original")
	assert.False(t, ok)
}

func TestVariantPathForHash(t *testing.T) {
	t.Parallel()

	hash := HashPicture([]byte("cover"))
	assert.Len(t, hash, 64)
	assert.Equal(t, filepath.Join("cache", hash+"__detail.avif"), VariantPathForHash("cache", hash, "detail"))
}

func TestSniffMIMEType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", SniffMIMEType(encodePNG(t, 2, 2), "image/jpeg"))
	assert.Equal(t, "image/webp", SniffMIMEType([]byte("not an image"), "image/webp"))
	assert.Equal(t, fallbackMIMEType, SniffMIMEType([]byte("not an image"), ""))
}

func newSourceFixture(t *testing.T) (*sql.DB, string) {
	t.Helper()

	base := t.TempDir()
	database, err := db.Bootstrap(filepath.Join(base, "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database, filepath.Join(base, "music")
}

func TestAlbumPictureUsesFirstTrack(t *testing.T) {
	t.Parallel()

	database, root := newSourceFixture(t)
	ctx := context.Background()

	album, _, err := library.NewAlbumRepository(database).FindOrCreate(ctx, "Artist", "Album", nil)
	require.NoError(t, err)
	tracks := library.NewTrackRepository(database)
	for _, track := range []library.Track{
		{Title: "Second", Artist: "Artist", FileURL: "/music/b.mp3", TrackNumber: 2, AlbumID: album.ID},
		{Title: "First", Artist: "Artist", FileURL: "/music/a.mp3", TrackNumber: 1, AlbumID: album.ID},
	} {
		_, err := tracks.Create(ctx, &track)
		require.NoError(t, err)
	}

	art := encodePNG(t, 4, 4)
	source := NewSource(database, fileref.NewResolver(root), stubPictures{
		"a.mp3": {MIMEType: "image/jpeg", Data: art},
		"b.mp3": {MIMEType: "image/png", Data: []byte("other")},
	})

	picture, err := source.AlbumPicture(ctx, album.ID)
	require.NoError(t, err)
	assert.Equal(t, art, picture.Data)
	assert.Equal(t, "image/png", picture.MIMEType)
}

func TestAlbumPictureMissing(t *testing.T) {
	t.Parallel()

	database, root := newSourceFixture(t)
	ctx := context.Background()

	album, _, err := library.NewAlbumRepository(database).FindOrCreate(ctx, "Artist", "Bare", nil)
	require.NoError(t, err)

	source := NewSource(database, fileref.NewResolver(root), stubPictures{"bare.mp3": nil})

	_, err = source.AlbumPicture(ctx, album.ID)
	assert.ErrorIs(t, err, ErrNoPicture)

	_, err = library.NewTrackRepository(database).Create(ctx, &library.Track{
		Title: "Bare", Artist: "Artist", FileURL: "/music/bare.mp3", AlbumID: album.ID,
	})
	require.NoError(t, err)
	_, err = source.AlbumPicture(ctx, album.ID)
	assert.ErrorIs(t, err, ErrNoPicture)

	_, err = source.AlbumPicture(ctx, "no-such-album")
	assert.ErrorIs(t, err, ErrNoPicture)
}

func TestRendererScalesAndCaches(t *testing.T) {
	t.Parallel()

	renderer := NewRenderer(filepath.Join(t.TempDir(), "covers"))
	picture := metadata.Picture{MIMEType: "image/png", Data: encodePNG(t, 400, 200)}

	var wg sync.WaitGroup
	paths := make([]string, 4)
	for i := range paths {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			path, err := renderer.Thumbnail(picture, VariantPlayer)
			assert.NoError(t, err)
			paths[index] = path
		}(i)
	}
	wg.Wait()

	for _, path := range paths {
		assert.Equal(t, paths[0], path)
	}
	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	entries, err := os.ReadDir(filepath.Dir(paths[0]))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = renderer.Thumbnail(picture, VariantOriginal)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestRendererRejectsUndecodablePicture(t *testing.T) {
	t.Parallel()

	renderer := NewRenderer(t.TempDir())
	_, err := renderer.Thumbnail(metadata.Picture{Data: []byte("garbage")}, VariantGrid)
	require.Error(t, err)
}

func TestFitSquare(t *testing.T) {
	t.Parallel()

	wide := image.NewNRGBA(image.Rect(0, 0, 800, 400))
	scaled := fitSquare(wide, 320)
	assert.Equal(t, 320, scaled.Bounds().Dx())
	assert.Equal(t, 160, scaled.Bounds().Dy())

	small := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	assert.Same(t, small, fitSquare(small, 320))
}
