// internal/store/badger.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/campusloop/loopd/internal/models"
)

const roomKeyPrefix = "room:"

// BadgerStore persists room documents in an embedded BadgerDB, one JSON value
// per room under a "room:<id>" key.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func roomKey(roomID string) []byte {
	return []byte(roomKeyPrefix + roomID)
}

func (s *BadgerStore) Get(_ context.Context, roomID string) (*models.Room, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get room %s: %w", roomID, err)
	}
	return decodeRoom(data)
}

func (s *BadgerStore) Set(_ context.Context, roomID string, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", roomID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(roomID), data)
	})
	if err != nil {
		return fmt.Errorf("badger set room %s: %w", roomID, err)
	}
	return nil
}

func (s *BadgerStore) All(_ context.Context) (map[string]*models.Room, error) {
	out := make(map[string]*models.Room)
	prefix := []byte(roomKeyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			roomID := strings.TrimPrefix(string(item.Key()), roomKeyPrefix)
			err := item.Value(func(v []byte) error {
				room, err := decodeRoom(v)
				if err != nil {
					return err
				}
				out[roomID] = room
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger scan rooms: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
