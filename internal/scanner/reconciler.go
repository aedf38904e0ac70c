package scanner

import (
	"context"

	"musicbox/internal/library"
)

// reconciler maps (artist, title) to album ids for the length of one sync run. Entries
// are only remembered after the owning transaction commits, so a rolled-back ingest never
// leaves a dangling id in the cache.
type reconciler struct {
	cache map[string]string
}

func newReconciler() *reconciler {
	return &reconciler{cache: make(map[string]string)}
}

func albumKey(artist string, title string) string {
	return artist + "|" + title
}

// resolve returns the album id for (artist, title), consulting the run cache before the
// store. coverURL overrides the derived cover endpoint on a freshly created album.
func (r *reconciler) resolve(ctx context.Context, q library.Querier, artist string, title string, year *int, coverURL string) (string, error) {
	if id, ok := r.cache[albumKey(artist, title)]; ok {
		return id, nil
	}

	albums := library.NewAlbumRepository(q)
	album, created, err := albums.FindOrCreate(ctx, artist, title, year)
	if err != nil {
		return "", err
	}

	if created && coverURL != "" {
		if err := albums.SetCoverURL(ctx, album.ID, coverURL); err != nil {
			return "", err
		}
	}

	return album.ID, nil
}

func (r *reconciler) remember(artist string, title string, id string) {
	r.cache[albumKey(artist, title)] = id
}
