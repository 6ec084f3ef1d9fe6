// Package history persists committed ledger events so clients can page
// through an asset's past without replaying state.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/types"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultLimit = 100
	maxLimit     = 1000
)

// Store records events through gorm.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu  sync.Mutex
	seq int64
}

// Open connects to the configured database and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("history: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an open gorm handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("history: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	s := &Store{db: db, logger: slog.Default(), nowFn: time.Now}
	var last Entry
	err := db.Order("seq desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("history: load sequence: %w", err)
	}
	s.seq = last.Seq
	return s, nil
}

// SetLogger replaces the logger used for failed writes from Emit.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Emit records evt, logging rather than returning failures so the store can
// sit in the ledger's emitter fanout.
func (s *Store) Emit(evt events.Event) {
	typed, ok := evt.(events.Typed)
	if !ok || typed.Evt == nil {
		return
	}
	if err := s.Record(context.Background(), typed.Evt); err != nil {
		s.logger.Warn("history: record event failed",
			slog.String("type", typed.Evt.Type),
			slog.Any("error", err))
	}
}

// Record persists evt. Events are ordered by a store-wide sequence.
func (s *Store) Record(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return errors.New("history: event required")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return fmt.Errorf("history: encode attributes: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := Entry{
		ID:         uuid.New(),
		Seq:        s.seq + 1,
		Asset:      strings.ToLower(evt.Attributes["asset"]),
		Type:       evt.Type,
		Attributes: string(attrs),
		CreatedAt:  s.nowFn().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	s.seq = entry.Seq
	return nil
}

// Query narrows a listing.
type Query struct {
	Asset string
	// Type matches exactly, or by prefix when it ends in ".".
	Type  string
	After int64
	Limit int
}

// List returns matching entries in sequence order.
func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	tx := s.db.WithContext(ctx).Model(&Entry{}).Where("seq > ?", q.After)
	if asset := strings.TrimSpace(q.Asset); asset != "" {
		tx = tx.Where("asset = ?", strings.ToLower(asset))
	}
	if typ := strings.TrimSpace(q.Type); typ != "" {
		if strings.HasSuffix(typ, ".") {
			tx = tx.Where("type LIKE ?", typ+"%")
		} else {
			tx = tx.Where("type = ?", typ)
		}
	}
	var out []Entry
	if err := tx.Order("seq asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
