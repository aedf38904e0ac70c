package coverart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

const VariantOriginal = "original"

const VariantPlayer = "player"

const VariantGrid = "grid"

const VariantDetail = "detail"

const ThumbnailExtension = ".avif"

type ThumbnailSpec struct {
	Variant string
	Size    int
}

var defaultThumbnailSpecs = []ThumbnailSpec{
	{Variant: VariantPlayer, Size: 96},
	{Variant: VariantGrid, Size: 320},
	{Variant: VariantDetail, Size: 768},
}

// NormalizeVariant maps unknown or empty values to the original picture.
func NormalizeVariant(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case VariantPlayer:
		return VariantPlayer
	case VariantGrid:
		return VariantGrid
	case VariantDetail:
		return VariantDetail
	default:
		return VariantOriginal
	}
}

func SpecFor(variant string) (ThumbnailSpec, bool) {
	normalized := NormalizeVariant(variant)
	for _, spec := range defaultThumbnailSpecs {
		if spec.Variant == normalized {
			return spec, true
		}
	}

	return ThumbnailSpec{}, false
}

// HashPicture is the cache identity of an embedded picture. Albums sharing artwork share
// cached thumbnails.
func HashPicture(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func VariantPathForHash(cacheDir string, coverHash string, variant string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s__%s%s", strings.ToLower(strings.TrimSpace(coverHash)), NormalizeVariant(variant), ThumbnailExtension))
}
