package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const DefaultGeniusBaseURL = "https://api.genius.com"

const maxGeniusResponseBytes = 4 << 20

// Genius resolves an artist through the song search: the first song hit whose primary
// artist contains the requested name (case-insensitive) supplies the artist id.
type Genius struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func NewGenius(token string, logger *slog.Logger) *Genius {
	return &Genius{
		baseURL: DefaultGeniusBaseURL,
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "enrich"),
	}
}

// WithBaseURL points the client at another host.
func (g *Genius) WithBaseURL(baseURL string) *Genius {
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

func (g *Genius) Lookup(ctx context.Context, name string) (Profile, error) {
	if g.token == "" {
		return Profile{}, ErrNotConfigured
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, ErrArtistNotFound
	}

	search, err := g.get(ctx, "/search?q="+url.QueryEscape(name))
	if err != nil {
		return Profile{}, err
	}

	needle := strings.ToLower(name)
	var artistID string
	for _, hit := range gjson.GetBytes(search, "response.hits").Array() {
		if hit.Get("type").String() != "song" {
			continue
		}
		primary := hit.Get("result.primary_artist")
		if strings.Contains(strings.ToLower(primary.Get("name").String()), needle) {
			artistID = primary.Get("id").String()
			break
		}
	}
	if artistID == "" {
		return Profile{}, fmt.Errorf("%w: %q", ErrArtistNotFound, name)
	}

	details, err := g.get(ctx, "/artists/"+url.PathEscape(artistID)+"?text_format=plain")
	if err != nil {
		return Profile{}, err
	}

	artist := gjson.GetBytes(details, "response.artist")
	profile := Profile{
		Name:     artist.Get("name").String(),
		ImageURL: artist.Get("image_url").String(),
		Bio:      strings.TrimSpace(artist.Get("description.plain").String()),
	}
	if profile.Bio == "?" {
		profile.Bio = ""
	}

	g.logger.Debug("fetched artist profile", "artist", name, "geniusId", artistID)
	return profile, nil
}

func (g *Genius) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build genius request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genius request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGeniusResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read genius response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("genius request %s: %s", path, resp.Status)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("genius request %s: invalid JSON", path)
	}

	return body, nil
}
