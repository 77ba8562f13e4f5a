package songapp

import (
	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

// storageAdapter adapts storage.DBClient to the Storage interface and hands out
// records that callers may modify freely.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLStorage opens the catalogue at dbPath (an SQLite file or a postgres:// DSN).
func NewSQLStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) InitializeSchema() error { return s.db.InitializeSchema() }

func (s *storageAdapter) Exists(identifier string) (bool, error) { return s.db.Exists(identifier) }

func (s *storageAdapter) InsertIfAbsent(rec *models.SongRecord) (bool, error) {
	return s.db.InsertIfAbsent(rec)
}

func (s *storageAdapter) LookupBySongName(name string) (*models.SongRecord, error) {
	return s.db.LookupBySongName(name)
}

func (s *storageAdapter) LookupByIdentifier(identifier string) (*models.SongRecord, error) {
	return s.db.LookupByIdentifier(identifier)
}

func (s *storageAdapter) LookupByLabel(label string, key storage.LabelKey) (*models.SongRecord, error) {
	return s.db.LookupByLabel(label, key)
}

func (s *storageAdapter) ListSongs() ([]models.SongRecord, error) { return s.db.ListSongs() }

func (s *storageAdapter) Count() (int64, error) { return s.db.Count() }

func (s *storageAdapter) DeleteByIdentifier(identifier string) error {
	return s.db.DeleteByIdentifier(identifier)
}

func (s *storageAdapter) Close() error { return s.db.Close() }

func summarize(rec *models.SongRecord) models.SongSummary {
	return models.SongSummary{
		ID:         rec.ID,
		Identifier: rec.Identifier,
		SongName:   rec.SongName,
		Artist:     rec.ArtistName(),
		HasImage:   len(rec.Image) > 0,
		Features:   len(rec.Features),
	}
}
