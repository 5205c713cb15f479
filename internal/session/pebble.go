package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/chamarodfai/pos-api/internal/cart"
	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

const keyPrefix = "cart/"

// PebbleStore implements Store on a local PebbleDB so open carts survive a
// restart of the terminal's API process.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize: 8 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func sessionKey(id uuid.UUID) []byte { return []byte(keyPrefix + id.String()) }

func (p *PebbleStore) Save(_ context.Context, id uuid.UUID, st cart.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	return p.db.Set(sessionKey(id), b, pebble.Sync)
}

func (p *PebbleStore) Load(_ context.Context, id uuid.UUID) (cart.State, error) {
	v, closer, err := p.db.Get(sessionKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return cart.State{}, ErrNotFound
	}
	if err != nil {
		return cart.State{}, err
	}
	defer closer.Close()

	var st cart.State
	if err := json.Unmarshal(v, &st); err != nil {
		return cart.State{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return st, nil
}

func (p *PebbleStore) Delete(_ context.Context, id uuid.UUID) error {
	k := sessionKey(id)
	_, closer, err := p.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_ = closer.Close()
	return p.db.Delete(k, pebble.Sync)
}

// IDs lists the persisted session ids.
func (p *PebbleStore) IDs() ([]uuid.UUID, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("cart0"), // '0' sorts right after '/'
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var ids []uuid.UUID
	for it.First(); it.Valid(); it.Next() {
		id, err := uuid.Parse(string(it.Key()[len(keyPrefix):]))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, it.Error()
}
