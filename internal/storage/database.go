package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"time-capsule-app/internal/models"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a capsule or config key does not exist
var ErrNotFound = errors.New("record not found")

// Database interface defines the contract for capsule record storage.
// It is the sole owner of durable capsule state and the only serialization
// point between concurrent viewers.
type Database interface {
	// Capsule operations
	SaveCapsule(capsule *models.Capsule) error
	GetCapsule(id string) (*models.Capsule, error)
	ListCapsules() ([]*models.Capsule, error)
	ListViewableCapsules(now time.Time) ([]*models.Capsule, error)
	MarkOpened(id string, openedAt time.Time) (*models.Capsule, error)
	UpdateRemainingDuration(id string, remaining float64) error
	DeleteCapsule(id string) error

	// Configuration operations
	SaveConfig(key, value string) error
	GetConfig(key string) (string, error)

	// Change notification
	Notifier() *ChangeNotifier

	// Database lifecycle
	Close() error
}

// SQLiteDatabase implements Database interface using SQLite
type SQLiteDatabase struct {
	db       *sql.DB
	notifier *ChangeNotifier
}

// NewSQLiteDatabase opens (creating if needed) the capsule database at dbPath
func NewSQLiteDatabase(dbPath string) (*SQLiteDatabase, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteDatabase{
		db:       db,
		notifier: NewChangeNotifier(),
	}, nil
}

// Notifier returns the change notifier fed by this store's mutations
func (s *SQLiteDatabase) Notifier() *ChangeNotifier {
	return s.notifier
}

// Close closes the database connection and detaches all change subscribers
func (s *SQLiteDatabase) Close() error {
	s.notifier.Close()
	return s.db.Close()
}

// SaveCapsule inserts a new capsule record
func (s *SQLiteDatabase) SaveCapsule(capsule *models.Capsule) error {
	if capsule == nil {
		return fmt.Errorf("capsule cannot be nil")
	}

	if err := capsule.Validate(); err != nil {
		return fmt.Errorf("invalid capsule record: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO time_capsules (
			id, name, type, content, media_path,
			created_at, available_at, expires_at,
			view_duration, is_opened, first_opened_at, remaining_duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		capsule.ID,
		capsule.Name,
		string(capsule.Type),
		capsule.Content,
		nullString(capsule.MediaPath),
		capsule.CreatedAt.UTC(),
		capsule.AvailableAt.UTC(),
		capsule.ExpiresAt.UTC(),
		capsule.ViewDuration,
		capsule.IsOpened,
		nullTime(capsule.FirstOpenedAt),
		nullFloat(capsule.RemainingDuration),
	)
	if err != nil {
		return fmt.Errorf("failed to insert capsule: %w", err)
	}

	s.notifier.Notify()
	return nil
}

// GetCapsule retrieves a capsule by ID. Returns ErrNotFound when absent.
func (s *SQLiteDatabase) GetCapsule(id string) (*models.Capsule, error) {
	if id == "" {
		return nil, fmt.Errorf("capsule ID cannot be empty")
	}

	row := s.db.QueryRow(`
		SELECT id, name, type, content, media_path,
		       created_at, available_at, expires_at,
		       view_duration, is_opened, first_opened_at, remaining_duration
		FROM time_capsules WHERE id = ?`, id)

	capsule, err := scanCapsule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("capsule %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get capsule: %w", err)
	}

	return capsule, nil
}

// ListCapsules retrieves all capsule records ordered by creation time descending
func (s *SQLiteDatabase) ListCapsules() ([]*models.Capsule, error) {
	rows, err := s.db.Query(`
		SELECT id, name, type, content, media_path,
		       created_at, available_at, expires_at,
		       view_duration, is_opened, first_opened_at, remaining_duration
		FROM time_capsules
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list capsules: %w", err)
	}
	defer rows.Close()

	return collectCapsules(rows)
}

// ListViewableCapsules retrieves capsules still visible to the user: either
// never opened, or opened with viewing budget left, and in all cases not past
// the hard expiry ceiling. Ordered by creation time descending.
func (s *SQLiteDatabase) ListViewableCapsules(now time.Time) ([]*models.Capsule, error) {
	rows, err := s.db.Query(`
		SELECT id, name, type, content, media_path,
		       created_at, available_at, expires_at,
		       view_duration, is_opened, first_opened_at, remaining_duration
		FROM time_capsules
		WHERE (is_opened = 0 OR (is_opened = 1 AND remaining_duration > 0))
		  AND expires_at > ?
		ORDER BY created_at DESC`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list viewable capsules: %w", err)
	}
	defer rows.Close()

	return collectCapsules(rows)
}

// MarkOpened records the first open of a capsule. The anchor timestamp is
// written only when it is still NULL, so concurrent opens converge on a
// single first_opened_at; later calls leave it untouched. The current
// snapshot is returned either way.
func (s *SQLiteDatabase) MarkOpened(id string, openedAt time.Time) (*models.Capsule, error) {
	if id == "" {
		return nil, fmt.Errorf("capsule ID cannot be empty")
	}

	result, err := s.db.Exec(`
		UPDATE time_capsules
		SET is_opened = 1, first_opened_at = ?
		WHERE id = ? AND first_opened_at IS NULL`,
		openedAt.UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark capsule opened: %w", err)
	}

	capsule, err := s.GetCapsule(id)
	if err != nil {
		return nil, err
	}

	if affected, _ := result.RowsAffected(); affected > 0 {
		s.notifier.Notify()
	}

	return capsule, nil
}

// UpdateRemainingDuration stores the remaining-view-time hint for a capsule
func (s *SQLiteDatabase) UpdateRemainingDuration(id string, remaining float64) error {
	if id == "" {
		return fmt.Errorf("capsule ID cannot be empty")
	}

	if remaining < 0 {
		remaining = 0
	}

	_, err := s.db.Exec(`
		UPDATE time_capsules SET remaining_duration = ? WHERE id = ?`,
		remaining, id)
	if err != nil {
		return fmt.Errorf("failed to update remaining duration: %w", err)
	}

	// No change signal here: the hint is written on a cadence while a
	// capsule is being watched, and fanning that out would keep every
	// listing in a permanent debounce loop.
	return nil
}

// DeleteCapsule removes a capsule record. Deleting an absent record is a
// success; the store has already converged on the desired state.
func (s *SQLiteDatabase) DeleteCapsule(id string) error {
	if id == "" {
		return fmt.Errorf("capsule ID cannot be empty")
	}

	result, err := s.db.Exec(`DELETE FROM time_capsules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete capsule: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected > 0 {
		s.notifier.Notify()
	}

	return nil
}

// SaveConfig stores a configuration key/value pair
func (s *SQLiteDatabase) SaveConfig(key, value string) error {
	if key == "" {
		return fmt.Errorf("config key cannot be empty")
	}

	_, err := s.db.Exec(`
		INSERT INTO app_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// GetConfig retrieves a configuration value. Returns ErrNotFound when the
// key has never been saved.
func (s *SQLiteDatabase) GetConfig(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("config key cannot be empty")
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM app_config WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("config %s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("failed to get config: %w", err)
	}

	return value, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCapsule(row rowScanner) (*models.Capsule, error) {
	var (
		capsule       models.Capsule
		capsuleType   string
		mediaPath     sql.NullString
		firstOpenedAt sql.NullTime
		remaining     sql.NullFloat64
	)

	err := row.Scan(
		&capsule.ID,
		&capsule.Name,
		&capsuleType,
		&capsule.Content,
		&mediaPath,
		&capsule.CreatedAt,
		&capsule.AvailableAt,
		&capsule.ExpiresAt,
		&capsule.ViewDuration,
		&capsule.IsOpened,
		&firstOpenedAt,
		&remaining,
	)
	if err != nil {
		return nil, err
	}

	capsule.Type = models.CapsuleType(capsuleType)
	if mediaPath.Valid {
		capsule.MediaPath = mediaPath.String
	}
	if firstOpenedAt.Valid {
		t := firstOpenedAt.Time
		capsule.FirstOpenedAt = &t
	}
	if remaining.Valid {
		r := remaining.Float64
		capsule.RemainingDuration = &r
	}

	return &capsule, nil
}

func collectCapsules(rows *sql.Rows) ([]*models.Capsule, error) {
	var capsules []*models.Capsule
	for rows.Next() {
		capsule, err := scanCapsule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capsule: %w", err)
		}
		capsules = append(capsules, capsule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate capsules: %w", err)
	}
	return capsules, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
