package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reservation states. The unique key column serializes concurrent duplicate
// submissions: exactly one caller wins the insert and executes side effects.
type State int

const (
	// StateReserved means this caller owns the key and must execute.
	StateReserved State = iota
	// StateReplay means a canonical response exists; return it verbatim.
	StateReplay
	// StateInFlight means another caller holds the reservation and has not
	// stored a response yet.
	StateInFlight
)

var ErrMissingKey = errors.New("missing_idempotency_key")

type Result struct {
	State    State
	Response []byte
}

type record struct {
	Key          string         `gorm:"column:key;primaryKey"`
	ResponseJSON datatypes.JSON `gorm:"column:response_json"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (record) TableName() string { return "idempotency_keys" }

// Store reserves idempotency keys and holds their canonical responses.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Reserve attempts to claim the key. The insert races through the primary
// key; losers read back the stored row to decide between replay and
// in-flight.
func (s *Store) Reserve(ctx context.Context, key string) (Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{}, ErrMissingKey
	}

	now := time.Now().UTC()
	row := record{Key: key, CreatedAt: now, UpdatedAt: now}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return Result{}, result.Error
	}
	if result.RowsAffected == 1 {
		return Result{State: StateReserved}, nil
	}

	var stored record
	if err := s.db.WithContext(ctx).First(&stored, "key = ?", key).Error; err != nil {
		return Result{}, err
	}
	if len(stored.ResponseJSON) > 0 {
		return Result{State: StateReplay, Response: stored.ResponseJSON}, nil
	}
	return Result{State: StateInFlight}, nil
}

// StoreResponse upserts the canonical response for a key. The reservation
// row may already exist, so this always writes through.
func (s *Store) StoreResponse(ctx context.Context, key string, response []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingKey
	}
	now := time.Now().UTC()
	row := record{
		Key:          key,
		ResponseJSON: datatypes.JSON(response),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{"response_json": datatypes.JSON(response), "updated_at": now}),
		}).
		Create(&row).Error
}

// StoreResponseTx is the transactional variant used when the response must
// commit atomically with the side effects it describes.
func (s *Store) StoreResponseTx(ctx context.Context, tx *gorm.DB, key string, response []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingKey
	}
	if tx == nil {
		return errors.New("missing_transaction")
	}
	now := time.Now().UTC()
	row := record{
		Key:          key,
		ResponseJSON: datatypes.JSON(response),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{"response_json": datatypes.JSON(response), "updated_at": now}),
		}).
		Create(&row).Error
}

// Release drops a reservation after a failed execution so the client can
// retry with the same key.
func (s *Store) Release(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingKey
	}
	return s.db.WithContext(ctx).
		Where("key = ? AND response_json IS NULL", key).
		Delete(&record{}).Error
}
