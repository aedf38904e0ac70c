package coverart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/avif"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"

	"musicbox/internal/metadata"
)

var ErrUnknownVariant = errors.New("unknown cover variant")

const (
	thumbnailQuality = 60
	thumbnailSpeed   = 10
)

// Renderer produces square-bounded AVIF thumbnails of cover pictures and keeps them in a
// content-addressed cache directory.
type Renderer struct {
	cacheDir string
	group    singleflight.Group
}

func NewRenderer(cacheDir string) *Renderer {
	return &Renderer{cacheDir: cacheDir}
}

// Thumbnail returns the cache path of the picture's variant, rendering it on first use.
// Concurrent requests for the same variant share one render.
func (r *Renderer) Thumbnail(picture metadata.Picture, variant string) (string, error) {
	spec, ok := SpecFor(variant)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	target := VariantPathForHash(r.cacheDir, HashPicture(picture.Data), spec.Variant)
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		return target, nil
	}

	_, err, _ := r.group.Do(target, func() (any, error) {
		if info, statErr := os.Stat(target); statErr == nil && info.Size() > 0 {
			return nil, nil
		}
		return nil, r.render(picture.Data, spec.Size, target)
	})
	if err != nil {
		return "", err
	}

	return target, nil
}

func (r *Renderer) render(data []byte, size int, target string) error {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode cover: %w", err)
	}

	scaled := fitSquare(src, size)

	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cover cache: %w", err)
	}

	tmp, err := os.CreateTemp(r.cacheDir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create thumbnail temp file: %w", err)
	}
	tmpPath := tmp.Name()

	encodeErr := avif.Encode(tmp, scaled, avif.Options{
		Quality:      thumbnailQuality,
		QualityAlpha: thumbnailQuality,
		Speed:        thumbnailSpeed,
	})
	closeErr := tmp.Close()
	if encodeErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode thumbnail: %w", errors.Join(encodeErr, closeErr))
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("store thumbnail: %w", err)
	}

	return nil
}

// fitSquare scales src so its longer side equals size. Smaller pictures are not enlarged.
func fitSquare(src image.Image, size int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := max(width, height)
	if longest <= size || longest == 0 {
		return src
	}

	targetWidth := max(width*size/longest, 1)
	targetHeight := max(height*size/longest, 1)

	dst := image.NewNRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
