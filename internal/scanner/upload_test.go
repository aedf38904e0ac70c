package scanner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"musicbox/internal/library"
	"musicbox/internal/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticParser struct {
	tags metadata.Tags
}

func (p staticParser) ExtractFrom(io.ReadSeeker) (metadata.Tags, error) {
	return p.tags, nil
}

type memoryCovers struct {
	mu    sync.Mutex
	saved [][]byte
}

func (m *memoryCovers) Save(data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, data)
	return "/uploads/cover.png", nil
}

func (m *memoryCovers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

var uploadedTags = metadata.Tags{
	Artist:  "Artist A feat. Guest",
	Album:   "Album X",
	Picture: &metadata.Picture{MIMEType: "image/png", Data: []byte("png")},
}

func TestImportPlacesFileAndUsesEmbeddedCover(t *testing.T) {
	t.Parallel()

	covers := &memoryCovers{}
	f := newFixture(t, WithUploadParser(staticParser{tags: uploadedTags}), WithCoverStore(covers))
	f.extractor.set("song.mp3", metadata.Tags{Title: "Song", Artist: "Artist A feat. Guest", Album: "Album X"})

	track, err := f.service.Import(context.Background(), Upload{Name: "song.mp3", Data: []byte("audio")})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(f.root, "Artist A", "Album X", "song.mp3"))
	assert.Equal(t, "/music/Artist A/Album X/song.mp3", track.FileURL)
	assert.Equal(t, "Song", track.Title)
	assert.Equal(t, "Guest", track.Features)

	albums := f.albums(t)
	require.Len(t, albums, 1)
	assert.Equal(t, "Artist A", albums[0].Artist)
	assert.Equal(t, "/uploads/cover.png", albums[0].CoverURL)
	assert.Equal(t, 1, covers.count())

	entries, err := os.ReadDir(filepath.Join(f.root, "Artist A", "Album X"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	result, err := f.service.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Added)
	assert.Equal(t, 1, result.TotalFound)
}

func TestImportKeepsExistingFilesAndAlbumCover(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithUploadParser(staticParser{tags: uploadedTags}), WithCoverStore(&memoryCovers{}))
	f.extractor.set("song.mp3", metadata.Tags{Artist: "Artist A", Album: "Album X"})
	f.extractor.set("song (2).mp3", metadata.Tags{Artist: "Artist A", Album: "Album X"})
	f.write(t, "Artist A/Album X/song.mp3")

	_, err := f.service.Sync(context.Background())
	require.NoError(t, err)

	track, err := f.service.Import(context.Background(), Upload{Name: "song.mp3", Data: []byte("other audio")})
	require.NoError(t, err)
	assert.Equal(t, "/music/Artist A/Album X/song (2).mp3", track.FileURL)

	original, err := os.ReadFile(filepath.Join(f.root, "Artist A", "Album X", "song.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "audio", string(original))

	albums := f.albums(t)
	require.Len(t, albums, 1)
	assert.Equal(t, library.CoverEndpoint(albums[0].ID), albums[0].CoverURL)
	assert.Equal(t, 2, albums[0].TrackCount)
}

func TestImportWithoutCoverStoreUsesDerivedCover(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithUploadParser(staticParser{tags: uploadedTags}))

	_, err := f.service.Import(context.Background(), Upload{Name: "song.mp3", Data: []byte("audio")})
	require.NoError(t, err)

	albums := f.albums(t)
	require.Len(t, albums, 1)
	assert.Equal(t, library.CoverEndpoint(albums[0].ID), albums[0].CoverURL)
}

func TestImportRejectsUnsupportedFiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithUploadParser(staticParser{tags: uploadedTags}))

	_, err := f.service.Import(context.Background(), Upload{Name: "notes.txt", Data: []byte("text")})
	assert.ErrorIs(t, err, ErrUnsupportedUpload)

	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImportRemovesFileThatCannotBeIngested(t *testing.T) {
	t.Parallel()

	covers := &memoryCovers{}
	f := newFixture(t, WithUploadParser(staticParser{tags: uploadedTags}), WithCoverStore(covers))
	f.extractor.breakFile("song.mp3")

	_, err := f.service.Import(context.Background(), Upload{Name: "song.mp3", Data: []byte("audio")})
	assert.ErrorIs(t, err, metadata.ErrUnreadable)

	assert.NoFileExists(t, filepath.Join(f.root, "Artist A", "Album X", "song.mp3"))
	assert.Empty(t, f.albums(t))
	assert.Empty(t, f.tracks(t))
}

func TestSafeSegment(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"AC/DC":          "AC_DC",
		"What? Why:":     "What_ Why_",
		"..":             "_",
		"  Spaced Out  ": "Spaced Out",
		"":               "_",
	}
	for input, want := range cases {
		assert.Equal(t, want, safeSegment(input), input)
	}
}
