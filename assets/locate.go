package assets

import (
	"context"
	"errors"
	"strings"
)

// ErrLookupMiss is returned when neither the candidate path nor the filename
// fallback produces an image.
var ErrLookupMiss = errors.New("assets: no matching image")

// Logger is the subset of echo.Logger / gommon log the locator writes to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Locator resolves references against an Index.
type Locator struct {
	Index  *Index
	Logger Logger
}

// Locate tries the exact candidate path first, then scans the index for keys
// containing the filename of raw. Query strings and fragments are ignored on
// both paths. Loader failures are logged and skipped.
func (l *Locator) Locate(ctx context.Context, candidate, raw string) (Image, error) {
	if l.Index == nil {
		return Image{}, ErrLookupMiss
	}
	candidate = trimQuery(candidate)
	tried := ""
	if load, ok := l.Index.Lookup(candidate); ok {
		tried = candidate
		img, err := load(ctx)
		if err == nil {
			return img, nil
		}
		l.warnf("failed to load image %s: %v", candidate, err)
	}

	filename := Filename(raw)
	for _, key := range l.Index.Matches(filename) {
		if key == tried {
			continue
		}
		load, _ := l.Index.Lookup(key)
		img, err := load(ctx)
		if err != nil {
			l.warnf("failed to load image %s: %v", key, err)
			continue
		}
		l.debugf("image %q resolved by filename to %s", raw, key)
		return img, nil
	}
	return Image{}, ErrLookupMiss
}

// Filename returns the final slash-separated segment of ref, without any
// query string or fragment.
func Filename(ref string) string {
	ref = trimQuery(ref)
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}

// trimQuery drops a query string or fragment from ref.
func trimQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

func (l *Locator) warnf(format string, args ...interface{}) {
	if l.Logger != nil {
		l.Logger.Warnf(format, args...)
	}
}

func (l *Locator) debugf(format string, args ...interface{}) {
	if l.Logger != nil {
		l.Logger.Debugf(format, args...)
	}
}
