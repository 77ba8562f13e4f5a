// Package storage keeps the song catalogue in a gorm-managed "songs" table.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/xon-patrick/SongApp/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "songs.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned by lookups that match no row. It is not a failure.
var ErrNotFound = errors.New("storage: song not found")

// LabelKey names the column that classifier labels are drawn from.
type LabelKey string

const (
	LabelSongName   LabelKey = "song_name"
	LabelIdentifier LabelKey = "identifier"
)

func ParseLabelKey(s string) (LabelKey, error) {
	switch LabelKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", LabelSongName:
		return LabelSongName, nil
	case LabelIdentifier:
		return LabelIdentifier, nil
	default:
		return "", fmt.Errorf("unknown label key %q (want %q or %q)", s, LabelSongName, LabelIdentifier)
	}
}

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Song is the row layout of the songs table.
type Song struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	Identifier string  `gorm:"uniqueIndex:idx_songs_identifier;not null"`
	SongName   string  `gorm:"index:idx_songs_song_name;not null"`
	Artist     *string `gorm:"index:idx_songs_artist"`
	Features   []byte
	Image      []byte
	SourcePath string
	CreatedAt  time.Time
}

func (Song) TableName() string { return "songs" }

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NewDBClient opens the store named by SONGAPP_DB_PATH, or DefaultDBFile.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("SONGAPP_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

// NewDBClientWithPath opens the store. A postgres:// DSN selects PostgreSQL,
// anything else is treated as an SQLite file path.
func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	if isPostgresDSN(dbPath) {
		dialector = postgres.Open(dbPath)
	} else {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating db dir: %w", err)
			}
		}
		dialector = sqlite.Open(dbPath + "?_pragma=busy_timeout(5000)")
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", dialector.Name(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	client := &DBClient{DB: db, db: sqlDB}
	if err := client.InitializeSchema(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return client, nil
}

// InitializeSchema creates the songs table and its indexes. Safe to call repeatedly.
func (c *DBClient) InitializeSchema() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := c.DB.AutoMigrate(&Song{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InsertIfAbsent stores rec unless a row with the same identifier exists.
// inserted reports whether a row was written.
func (c *DBClient) InsertIfAbsent(rec *models.SongRecord) (inserted bool, err error) {
	if c == nil || c.DB == nil {
		return false, errors.New(errDBClientNil)
	}
	if rec == nil || rec.Identifier == "" {
		return false, errors.New("storage: record identifier is required")
	}

	row := toRow(rec)
	tx := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}},
		DoNothing: true,
	}).Create(&row)
	if tx.Error != nil {
		return false, fmt.Errorf("inserting song %q: %w", rec.Identifier, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return false, nil
	}
	rec.ID = row.ID
	return true, nil
}

// Exists reports whether a row with the identifier is present.
func (c *DBClient) Exists(identifier string) (bool, error) {
	if c == nil || c.DB == nil {
		return false, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Song{}).Where("identifier = ?", identifier).Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking song %q: %w", identifier, err)
	}
	return count > 0, nil
}

func (c *DBClient) LookupBySongName(name string) (*models.SongRecord, error) {
	return c.lookup("song_name", name)
}

func (c *DBClient) LookupByIdentifier(identifier string) (*models.SongRecord, error) {
	return c.lookup("identifier", identifier)
}

// LookupByLabel resolves a classifier label through the column named by key.
func (c *DBClient) LookupByLabel(label string, key LabelKey) (*models.SongRecord, error) {
	switch key {
	case LabelIdentifier:
		return c.LookupByIdentifier(label)
	case LabelSongName, "":
		return c.LookupBySongName(label)
	default:
		return nil, fmt.Errorf("unknown label key %q", key)
	}
}

func (c *DBClient) lookup(column, value string) (*models.SongRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var row Song
	// First orders by primary key, so duplicates resolve to the earliest insert.
	err := c.DB.Where(column+" = ?", value).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song by %s: %w", column, err)
	}
	return fromRow(&row)
}

// ListSongs returns every record in insertion order.
func (c *DBClient) ListSongs() ([]models.SongRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Song
	if err := c.DB.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	out := make([]models.SongRecord, 0, len(rows))
	for i := range rows {
		rec, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (c *DBClient) Count() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Song{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return count, nil
}

// DeleteByIdentifier removes a record. Deleting a missing identifier returns ErrNotFound.
func (c *DBClient) DeleteByIdentifier(identifier string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	tx := c.DB.Where("identifier = ?", identifier).Delete(&Song{})
	if tx.Error != nil {
		return fmt.Errorf("deleting song %q: %w", identifier, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toRow(rec *models.SongRecord) Song {
	var artist *string
	if rec.Artist != nil {
		a := *rec.Artist
		artist = &a
	}
	return Song{
		Identifier: rec.Identifier,
		SongName:   rec.SongName,
		Artist:     artist,
		Features:   EncodeFeatures(rec.Features),
		Image:      rec.Image,
		SourcePath: rec.SourcePath,
	}
}

func fromRow(row *Song) (*models.SongRecord, error) {
	feats, err := DecodeFeatures(row.Features)
	if err != nil {
		return nil, fmt.Errorf("song %q: %w", row.Identifier, err)
	}
	var image []byte
	if len(row.Image) > 0 {
		image = row.Image
	}
	return &models.SongRecord{
		ID:         row.ID,
		Identifier: row.Identifier,
		SongName:   row.SongName,
		Artist:     row.Artist,
		Features:   feats,
		Image:      image,
		SourcePath: row.SourcePath,
	}, nil
}
