package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xon-patrick/SongApp/pkg/logger"
	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
	"github.com/xon-patrick/SongApp/pkg/utils"
)

// Catalogue is the song store as seen by the API.
type Catalogue interface {
	ListSongs() ([]models.SongSummary, error)
	GetSong(ref string) (*models.SongRecord, error)
	DeleteSong(identifier string) error
}

// Recognizer identifies uploaded or live audio.
type Recognizer interface {
	IdentifyFile(ctx context.Context, path string) models.Result
	IdentifyLive(ctx context.Context, seconds float64) models.Result
	Info() songapp.ModelInfo
}

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	catalogue  Catalogue
	recognizer Recognizer // nil until a model has been trained
	spectrum   http.Handler
	config     *ServerConfig
	log        songapp.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	TempDir        string
	AllowedOrigins []string
	Live           bool    // POST /api/identify/live is served
	ListenSeconds  float64 // default recording length for live identification
}

func NewServer(catalogue Catalogue, recognizer Recognizer, config *ServerConfig) *Server {
	return &Server{
		catalogue:  catalogue,
		recognizer: recognizer,
		config:     config,
		log:        logger.GetLogger(),
	}
}

// WithSpectrum mounts h on /ws/spectrum.
func (s *Server) WithSpectrum(h http.Handler) *Server {
	s.spectrum = h
	return s
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "SongApp API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":       "GET /health",
			"metrics":      "GET /api/health/metrics",
			"songs":        "GET /api/songs",
			"getSong":      "GET /api/songs/{identifier}",
			"cover":        "GET /api/songs/{identifier}/cover",
			"deleteSong":   "DELETE /api/songs/{identifier}",
			"model":        "GET /api/model",
			"identify":     "POST /api/identify",
			"identifyLive": "POST /api/identify/live",
			"spectrum":     "GET /ws/spectrum",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalogue.ListSongs()
	if err != nil {
		s.log.Errorf("Failed to get song count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	resp := MetricsResponse{
		Status:       "healthy",
		SongCount:    len(songs),
		SpectrumFeed: s.spectrum != nil,
		LiveCapture:  s.config.Live && s.recognizer != nil,
	}
	if s.recognizer != nil {
		info := s.recognizer.Info()
		resp.ModelLoaded = true
		resp.ModelAccuracy = info.Accuracy
		resp.Labels = len(info.Labels)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleListSongs handles GET /api/songs
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalogue.ListSongs()
	if err != nil {
		s.log.Errorf("Failed to list songs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve songs")
		return
	}

	s.respondJSON(w, http.StatusOK, ListSongsResponse{
		Songs: songs,
		Count: len(songs),
	})
}

// lookupSong resolves the {identifier} path value, writing the error response itself.
func (s *Server) lookupSong(w http.ResponseWriter, r *http.Request) (*models.SongRecord, bool) {
	ref := r.PathValue("identifier")
	song, err := s.catalogue.GetSong(ref)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Song %q not found", ref))
		return nil, false
	}
	if err != nil {
		s.log.Errorf("Failed to get song %s: %v", ref, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve song")
		return nil, false
	}
	return song, true
}

// handleGetSong handles GET /api/songs/{identifier}
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	song, ok := s.lookupSong(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, models.SongSummary{
		ID:         song.ID,
		Identifier: song.Identifier,
		SongName:   song.SongName,
		Artist:     song.ArtistName(),
		HasImage:   len(song.Image) > 0,
		Features:   len(song.Features),
	})
}

// handleCover handles GET /api/songs/{identifier}/cover
func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	song, ok := s.lookupSong(w, r)
	if !ok {
		return
	}
	if len(song.Image) == 0 {
		s.respondError(w, http.StatusNotFound, "Song has no cover image")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(song.Image))
	w.Header().Set("Content-Length", strconv.Itoa(len(song.Image)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(song.Image)
}

// handleDeleteSong handles DELETE /api/songs/{identifier}
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	song, ok := s.lookupSong(w, r)
	if !ok {
		return
	}

	if err := s.catalogue.DeleteSong(song.Identifier); err != nil {
		s.log.Errorf("Failed to delete song %s: %v", song.Identifier, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete song")
		return
	}

	s.log.Infof("Deleted song: %s by %s (%s)", song.SongName, song.ArtistName(), song.Identifier)
	s.respondJSON(w, http.StatusOK, DeleteSongResponse{
		Message:    "Song deleted successfully",
		Identifier: song.Identifier,
	})
}

// handleModel handles GET /api/model
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	if s.recognizer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "No model loaded; train one first")
		return
	}
	s.respondJSON(w, http.StatusOK, s.recognizer.Info())
}

// handleIdentify handles POST /api/identify (multipart "audio" upload)
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if s.recognizer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "No model loaded; train one first")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	// The decoder dispatches on the extension, so the temp file keeps it.
	ext := filepath.Ext(header.Filename)
	if !utils.IsAudioFile(header.Filename) {
		ext = ".wav"
	}
	out, err := os.CreateTemp(s.config.TempDir, "upload-*"+ext)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	tempFile := out.Name()
	defer os.Remove(tempFile)

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	out.Close()

	s.log.Infof("Identifying upload %s (%d bytes)", header.Filename, header.Size)
	s.respondResult(w, s.recognizer.IdentifyFile(ctx, tempFile))
}

// handleIdentifyLive handles POST /api/identify/live?seconds=N
func (s *Server) handleIdentifyLive(w http.ResponseWriter, r *http.Request) {
	if s.recognizer == nil || !s.config.Live {
		s.respondError(w, http.StatusServiceUnavailable, "Live identification is disabled")
		return
	}

	seconds := s.config.ListenSeconds
	if v := r.URL.Query().Get("seconds"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 || n > 60 {
			s.respondError(w, http.StatusBadRequest, "seconds must be in (0, 60]")
			return
		}
		seconds = n
	}

	s.respondResult(w, s.recognizer.IdentifyLive(r.Context(), seconds))
}

// respondResult maps an identification outcome to a status code. NotFound and
// Failed are reported in the body; only a failed pipeline is an unprocessable request.
func (s *Server) respondResult(w http.ResponseWriter, res models.Result) {
	resp := IdentifyResponse{Result: res}
	status := http.StatusOK

	switch res.Outcome {
	case models.OutcomeFound:
		if res.Identifier != "" && len(res.Image) > 0 {
			resp.CoverURL = "/api/songs/" + url.PathEscape(res.Identifier) + "/cover"
		}
	case models.OutcomeFailed:
		status = http.StatusUnprocessableEntity
	}
	s.respondJSON(w, status, resp)
}
