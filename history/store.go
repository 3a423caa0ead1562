package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eidoslabs/eidos/types"
)

// Store persists the wire envelope for session histories. Any
// implementation must round-trip the envelope exactly: message and
// context text survive encode/decode unchanged.
type Store interface {
	// AppendTurns persists turns for a session in order.
	AppendTurns(ctx context.Context, sessionID string, turns []types.Turn) error

	// Load rebuilds a session's history. A missing session yields an
	// empty history; a corrupt record yields HISTORY_CORRUPT.
	Load(ctx context.Context, sessionID string) (*History, error)

	// Close releases the underlying database.
	Close() error
}

// turnRow is the storage schema: one envelope per row, ordered by Seq.
type turnRow struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index:idx_session_seq,priority:1;not null"`
	Seq       int    `gorm:"index:idx_session_seq,priority:2;not null"`
	Role      string `gorm:"not null"`
	Payload   string `gorm:"not null"`
}

func (turnRow) TableName() string { return "history_turns" }

// SQLiteStore implements Store on an embedded sqlite database via GORM.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.AutoMigrate(&turnRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With(zap.String("component", "history_store")),
	}, nil
}

// AppendTurns persists turns after a completed exchange, continuing the
// session's sequence numbering.
func (s *SQLiteStore) AppendTurns(ctx context.Context, sessionID string, turns []types.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		row := tx.Model(&turnRow{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(seq), -1)").
			Row()
		if err := row.Scan(&maxSeq); err != nil {
			return fmt.Errorf("failed to read sequence: %w", err)
		}

		rows := make([]turnRow, 0, len(turns))
		for i, turn := range turns {
			rec, err := turn.Encode()
			if err != nil {
				return err
			}
			rows = append(rows, turnRow{
				SessionID: sessionID,
				Seq:       maxSeq + 1 + i,
				Role:      rec.Role,
				Payload:   string(rec.Payload),
			})
		}
		return tx.Create(&rows).Error
	})
}

// Load rebuilds the session history in stored order.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*History, error) {
	var rows []turnRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	records := make([]types.TurnRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, types.TurnRecord{
			Role:    row.Role,
			Payload: json.RawMessage(row.Payload),
		})
	}
	return FromRecords(records)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
