package ingest

import (
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// taggedArtist reads the artist from embedded ID3/MP4/FLAC tags. Files without
// tags give nil. It is only reported; stored artists come from the file name.
func taggedArtist(path string) *string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	artist := strings.TrimSpace(m.Artist())
	if artist == "" {
		return nil
	}
	return &artist
}
