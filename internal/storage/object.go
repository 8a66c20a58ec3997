/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage archives itinerary snapshots in object storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore abstracts object storage operations.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Snapshot is one archived itinerary revision.
type Snapshot struct {
	UserID    string          `json:"user_id"`
	Title     string          `json:"title"`
	Revision  int             `json:"revision"`
	Operation string          `json:"operation"`
	RunID     string          `json:"run_id"`
	Mode      string          `json:"mode"`
	Tables    json.RawMessage `json:"tables"`
	SavedAt   time.Time       `json:"saved_at"`
}

// Archive writes itinerary snapshots under a key prefix.
type Archive struct {
	store  ObjectStore
	prefix string
}

// NewArchive wraps store. A nil store yields a nil archive.
func NewArchive(store ObjectStore, prefix string) *Archive {
	if store == nil {
		return nil
	}
	return &Archive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key of a snapshot revision.
func (a *Archive) Key(userID, title string, revision int) string {
	return path.Join(a.prefix, url.PathEscape(userID), url.PathEscape(title), fmt.Sprintf("rev-%06d.json", revision))
}

// Save stores snap and returns its key.
func (a *Archive) Save(ctx context.Context, snap Snapshot) (string, error) {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := a.Key(snap.UserID, snap.Title, snap.Revision)
	if err := a.store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("archive snapshot %s: %w", key, err)
	}
	return key, nil
}

// Load reads a snapshot revision.
func (a *Archive) Load(ctx context.Context, userID, title string, revision int) (*Snapshot, error) {
	data, err := a.store.Get(ctx, a.Key(userID, title, revision))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// MemoryStore is an in-process ObjectStore used by the offline planner.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Keys returns the stored keys.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
