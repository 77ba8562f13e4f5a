package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

type fakeCatalogue struct {
	songs   []models.SongRecord
	deleted []string
}

func (c *fakeCatalogue) ListSongs() ([]models.SongSummary, error) {
	out := make([]models.SongSummary, 0, len(c.songs))
	for _, s := range c.songs {
		out = append(out, models.SongSummary{ID: s.ID, Identifier: s.Identifier, SongName: s.SongName, HasImage: len(s.Image) > 0})
	}
	return out, nil
}

func (c *fakeCatalogue) GetSong(ref string) (*models.SongRecord, error) {
	for i := range c.songs {
		if c.songs[i].Identifier == ref {
			return &c.songs[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (c *fakeCatalogue) DeleteSong(identifier string) error {
	c.deleted = append(c.deleted, identifier)
	return nil
}

type fakeRecognizer struct {
	result   models.Result
	lastPath string
	seconds  float64
}

func (r *fakeRecognizer) IdentifyFile(_ context.Context, path string) models.Result {
	r.lastPath = path
	return r.result
}

func (r *fakeRecognizer) IdentifyLive(_ context.Context, seconds float64) models.Result {
	r.seconds = seconds
	return r.result
}

func (r *fakeRecognizer) Info() songapp.ModelInfo {
	return songapp.ModelInfo{ID: "m1", Labels: []string{"Alpha", "Bravo"}, Accuracy: 0.5, LabelKey: "song_name"}
}

func newCatalogue() *fakeCatalogue {
	return &fakeCatalogue{songs: []models.SongRecord{
		{ID: 1, Identifier: "Alpha-One.wav", SongName: "Alpha", Image: pngHeader},
		{ID: 2, Identifier: "Bravo.mp3", SongName: "Bravo"},
	}}
}

func newTestServer(t *testing.T, rec Recognizer, live bool) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(newCatalogue(), rec, &ServerConfig{
		TempDir:        t.TempDir(),
		AllowedOrigins: []string{"*"},
		Live:           live,
		ListenSeconds:  5,
	})
	return s, s.setupRoutes()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil, false)
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestListSongs(t *testing.T) {
	_, h := newTestServer(t, nil, false)
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/songs", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ListSongsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "Alpha-One.wav", resp.Songs[0].Identifier)
}

func TestCover(t *testing.T) {
	_, h := newTestServer(t, nil, false)

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/songs/Alpha-One.wav/cover", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, rr.Body.Bytes())

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/songs/Bravo.mp3/cover", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/songs/missing.wav/cover", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteSong(t *testing.T) {
	s, h := newTestServer(t, nil, false)
	rr := do(t, h, httptest.NewRequest(http.MethodDelete, "/api/songs/Bravo.mp3", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Bravo.mp3"}, s.catalogue.(*fakeCatalogue).deleted)
}

func TestIdentifyWithoutModel(t *testing.T) {
	_, h := newTestServer(t, nil, false)
	rr := do(t, h, httptest.NewRequest(http.MethodPost, "/api/identify", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/identify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIdentifyUpload(t *testing.T) {
	rec := &fakeRecognizer{result: models.Found("Alpha", &models.SongRecord{Identifier: "Alpha-One.wav", SongName: "Alpha", Image: pngHeader}, 0.9)}
	_, h := newTestServer(t, rec, false)

	rr := do(t, h, uploadRequest(t, "clip.mp3", []byte("ID3 data")))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, ".mp3", filepath.Ext(rec.lastPath))
	assert.NoFileExists(t, rec.lastPath)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "found", resp["status"])
	assert.Equal(t, "Alpha", resp["label"])
	assert.Equal(t, "Alpha-One.wav", resp["identifier"])
	assert.Equal(t, "/api/songs/Alpha-One.wav/cover", resp["cover_url"])
	assert.NotContains(t, resp, "image")
}

func TestIdentifyFailureStatus(t *testing.T) {
	rec := &fakeRecognizer{result: models.Failed("decode failed")}
	_, h := newTestServer(t, rec, false)

	rr := do(t, h, uploadRequest(t, "clip.wav", []byte("junk")))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "decode failed")

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/identify", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIdentifyLive(t *testing.T) {
	rec := &fakeRecognizer{result: models.NotFound("Zulu", 0.4)}

	_, h := newTestServer(t, rec, false)
	rr := do(t, h, httptest.NewRequest(http.MethodPost, "/api/identify/live", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	_, h = newTestServer(t, rec, true)
	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/identify/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5.0, rec.seconds)
	assert.Contains(t, rr.Body.String(), "not_found")

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/identify/live?seconds=3", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3.0, rec.seconds)

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/identify/live?seconds=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORSAllowList(t *testing.T) {
	handler := corsMiddleware([]string{"http://ok.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://ok.example")
	rr := do(t, handler, req)
	assert.Equal(t, "http://ok.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = do(t, handler, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, parseOrigins("*"))
	assert.Equal(t, []string{"a", "b"}, parseOrigins("a, b"))
}
