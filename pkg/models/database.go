package models

// SongRecord is one row of the song catalogue.
// Identifier is the source file base name and is unique within the store.
type SongRecord struct {
	ID         uint      // Row id, assigned on insert
	Identifier string    // Source file base name, extension included
	SongName   string    // Part of the base name before the first '-'
	Artist     *string   // Part after the first '-', nil when absent
	Features   []float64 // Magnitude-spectrum fingerprint
	Image      []byte    // Cover image bytes (PNG), nil when absent
	SourcePath string    // Path of the audio file the record was built from
}

// ArtistName returns the artist or an empty string when unset.
func (r *SongRecord) ArtistName() string {
	if r == nil || r.Artist == nil {
		return ""
	}
	return *r.Artist
}

// SongSummary is a record without its feature and image payloads, used for listings.
type SongSummary struct {
	ID         uint   `json:"id"`
	Identifier string `json:"identifier"`
	SongName   string `json:"song_name"`
	Artist     string `json:"artist,omitempty"`
	HasImage   bool   `json:"has_image"`
	Features   int    `json:"feature_length"`
}
