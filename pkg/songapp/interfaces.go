package songapp

import (
	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

// Storage is the song catalogue.
type Storage interface {
	InitializeSchema() error
	Exists(identifier string) (bool, error)
	InsertIfAbsent(rec *models.SongRecord) (bool, error)
	LookupBySongName(name string) (*models.SongRecord, error)
	LookupByIdentifier(identifier string) (*models.SongRecord, error)
	LookupByLabel(label string, key storage.LabelKey) (*models.SongRecord, error)
	ListSongs() ([]models.SongRecord, error)
	Count() (int64, error)
	DeleteByIdentifier(identifier string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
