package storage

import (
	"path/filepath"
	"strings"
)

// ParseSongName splits a file name, minus its extension, on the first '-'.
// "Song - Artist" gives ("Song", "Artist"); a name without '-' has no artist.
func ParseSongName(base string) (songName string, artist *string) {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	left, right, found := strings.Cut(base, "-")
	if !found {
		return strings.TrimSpace(base), nil
	}
	a := strings.TrimSpace(right)
	return strings.TrimSpace(left), &a
}
