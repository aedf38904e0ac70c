// Package fileref maps between stored track references ("/music/Artist/Album/Song.mp3")
// and absolute paths under the configured music root.
//
// Stored references always use forward slashes. On hosts where the path separator is
// not a slash the separator is translated; other characters are left untouched, so a
// reference produced by Ref resolves back to the same path byte for byte.
package fileref

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Prefix marks the virtual music root in stored references.
const Prefix = "/music"

var ErrInvalidReference = errors.New("invalid file reference")

var ErrOutsideRoot = errors.New("path is outside the music root")

// Resolver carries the music root in canonical form. A root that is a symlink (a NAS or
// container mount) is resolved once so directory walks descend into the real tree; the
// configured spelling is kept as an alias that Ref still accepts.
type Resolver struct {
	root  string
	alias string
}

func NewResolver(root string) Resolver {
	configured := filepath.Clean(root)

	canonical, err := filepath.EvalSymlinks(configured)
	if err != nil || canonical == configured {
		return Resolver{root: configured}
	}

	return Resolver{root: canonical, alias: configured}
}

func (r Resolver) Root() string {
	return r.root
}

// Resolve strips the prefix and any leading separator and joins the rest onto the root.
// It does not check that the file exists.
func (r Resolver) Resolve(ref string) (string, error) {
	relative, err := relativeFromRef(ref)
	if err != nil {
		return "", err
	}

	return filepath.Join(r.root, filepath.FromSlash(relative)), nil
}

// Ref derives the stored reference for an absolute path under the root.
// A root that did not exist when the resolver was built is evaluated again here, so
// paths reported under a late-created symlinked root still map.
func (r Resolver) Ref(absolutePath string) (string, error) {
	cleaned := filepath.Clean(absolutePath)

	relative, ok := relativeTo(r.root, cleaned)
	if !ok && r.alias != "" {
		relative, ok = relativeTo(r.alias, cleaned)
	}
	if !ok && r.alias == "" {
		if canonical, err := filepath.EvalSymlinks(r.root); err == nil && canonical != r.root {
			relative, ok = relativeTo(canonical, cleaned)
		}
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, absolutePath)
	}

	return Prefix + "/" + filepath.ToSlash(relative), nil
}

func relativeTo(root string, path string) (string, bool) {
	relative, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if relative == "." || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", false
	}

	return relative, true
}

func relativeFromRef(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidReference)
	}

	if !strings.HasPrefix(ref, Prefix) {
		return "", fmt.Errorf("%w: %q lacks %s prefix", ErrInvalidReference, ref, Prefix)
	}

	relative := ref[len(Prefix):]
	if filepath.Separator == '\\' {
		relative = strings.ReplaceAll(relative, `\`, "/")
	}
	if relative != "" && relative[0] != '/' {
		return "", fmt.Errorf("%w: %q lacks %s prefix", ErrInvalidReference, ref, Prefix)
	}
	relative = strings.TrimLeft(relative, "/")
	if relative == "" {
		return "", fmt.Errorf("%w: %q names no file", ErrInvalidReference, ref)
	}

	for _, segment := range strings.Split(relative, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q escapes the music root", ErrInvalidReference, ref)
		}
	}

	cleaned := path.Clean(relative)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q names no file", ErrInvalidReference, ref)
	}

	return cleaned, nil
}
