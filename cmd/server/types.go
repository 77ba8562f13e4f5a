package main

import "github.com/xon-patrick/SongApp/pkg/models"

// MaxUploadBytes bounds multipart uploads to POST /api/identify.
const MaxUploadBytes = 100 << 20

// ListSongsResponse is the response for GET /api/songs
type ListSongsResponse struct {
	Songs []models.SongSummary `json:"songs"`
	Count int                  `json:"count"`
}

// DeleteSongResponse is the response for DELETE /api/songs/{identifier}
type DeleteSongResponse struct {
	Message    string `json:"message"`
	Identifier string `json:"identifier"`
}

// IdentifyResponse wraps a recognition result. CoverURL is set when the song has an image.
type IdentifyResponse struct {
	models.Result
	CoverURL string `json:"cover_url,omitempty"`
}

// MetricsResponse provides server health and catalogue metrics
type MetricsResponse struct {
	Status        string  `json:"status"`
	SongCount     int     `json:"song_count"`
	ModelLoaded   bool    `json:"model_loaded"`
	ModelAccuracy float64 `json:"model_accuracy,omitempty"`
	Labels        int     `json:"labels,omitempty"`
	SpectrumFeed  bool    `json:"spectrum_feed"`
	LiveCapture   bool    `json:"live_capture"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
