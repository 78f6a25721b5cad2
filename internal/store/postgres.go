// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusloop/loopd/internal/models"
)

// PostgresStore keeps each room as a single jsonb document in the loop_rooms
// table. The engine treats the row as the unit of atomicity, so plain
// upserts are enough.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createRoomsTable = `
CREATE TABLE IF NOT EXISTS loop_rooms (
	room_id    text PRIMARY KEY,
	state      jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// NewPostgresStore connects a pgx pool and ensures the loop_rooms table
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createRoomsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure loop_rooms table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, roomID string) (*models.Room, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM loop_rooms WHERE room_id = $1`, roomID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get room %s: %w", roomID, err)
	}
	return decodeRoom(data)
}

func (s *PostgresStore) Set(ctx context.Context, roomID string, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", roomID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO loop_rooms (room_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (room_id) DO UPDATE SET state = $2, updated_at = now()`,
		roomID, data,
	)
	if err != nil {
		return fmt.Errorf("postgres set room %s: %w", roomID, err)
	}
	return nil
}

func (s *PostgresStore) All(ctx context.Context) (map[string]*models.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT room_id, state FROM loop_rooms`)
	if err != nil {
		return nil, fmt.Errorf("postgres scan rooms: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.Room)
	for rows.Next() {
		var roomID string
		var data []byte
		if err := rows.Scan(&roomID, &data); err != nil {
			return nil, fmt.Errorf("postgres scan row: %w", err)
		}
		room, err := decodeRoom(data)
		if err != nil {
			return nil, err
		}
		out[roomID] = room
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
