// Package archive keeps the latest score snapshot of every watched match in
// Postgres so that a restart or a failing upstream still has something to
// show.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
)

const defaultQueueSize = 256

// Record is one row of live_scores.
type Record struct {
	MatchID        string `gorm:"primaryKey"`
	Team1Score     int
	Team2Score     int
	CurrentMap     string
	MapNumber      int
	Team1RoundsWon int
	Team2RoundsWon int
	CurrentRound   int
	Status         string `gorm:"index"`
	LastUpdate     time.Time
	UpdatedAt      time.Time
}

func (Record) TableName() string { return "live_scores" }

func toRecord(ev livescore.Event) Record {
	return Record{
		MatchID:        ev.MatchID,
		Team1Score:     ev.Team1Score,
		Team2Score:     ev.Team2Score,
		CurrentMap:     ev.CurrentMap,
		MapNumber:      ev.MapNumber,
		Team1RoundsWon: ev.Team1RoundsWon,
		Team2RoundsWon: ev.Team2RoundsWon,
		CurrentRound:   ev.CurrentRound,
		Status:         string(ev.Status),
		LastUpdate:     ev.LastUpdate.UTC(),
	}
}

func (r Record) event() livescore.Event {
	return livescore.Event{
		MatchID:        r.MatchID,
		Team1Score:     r.Team1Score,
		Team2Score:     r.Team2Score,
		CurrentMap:     r.CurrentMap,
		MapNumber:      r.MapNumber,
		Team1RoundsWon: r.Team1RoundsWon,
		Team2RoundsWon: r.Team2RoundsWon,
		CurrentRound:   r.CurrentRound,
		Status:         livescore.Status(r.Status),
		LastUpdate:     r.LastUpdate,
	}
}

// Open connects to Postgres through gorm's pgx-backed driver.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	return db, nil
}

// Store writes snapshots asynchronously; Observe never blocks the caller.
type Store struct {
	db     *gorm.DB
	queue  chan livescore.Event
	logger *zap.Logger
	done   chan struct{}
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		db:     db,
		queue:  make(chan livescore.Event, defaultQueueSize),
		logger: logger.Named("archive"),
		done:   make(chan struct{}),
	}
	go s.writer()
	return s
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Record{})
}

// Observe queues ev for writing and drops it when the queue is full.
func (s *Store) Observe(ev livescore.Event) {
	select {
	case s.queue <- ev:
	default:
		s.logger.Warn("archive queue full, dropping snapshot", zap.String("match_id", ev.MatchID))
	}
}

// Save upserts the snapshot for ev.MatchID.
func (s *Store) Save(ctx context.Context, ev livescore.Event) error {
	rec := toRecord(ev)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", ev.MatchID, err)
	}
	return nil
}

// Latest returns the archived snapshot, wrapping livescore.ErrNoData when
// the match was never seen.
func (s *Store) Latest(ctx context.Context, matchID string) (livescore.Event, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "match_id = ?", matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return livescore.Event{}, fmt.Errorf("archive %s: %w", matchID, livescore.ErrNoData)
	}
	if err != nil {
		return livescore.Event{}, fmt.Errorf("load snapshot %s: %w", matchID, err)
	}
	return rec.event(), nil
}

// Close flushes queued snapshots and stops the writer.
func (s *Store) Close() {
	close(s.queue)
	<-s.done
}

func (s *Store) writer() {
	defer close(s.done)
	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.Save(ctx, ev); err != nil {
			s.logger.Warn("archive write failed", zap.Error(err))
		}
		cancel()
	}
}
