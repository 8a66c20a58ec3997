/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeS3 answers path-style PutObject and GetObject requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	fake := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "trips",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	return store, fake
}

func TestS3PutGet(t *testing.T) {
	store, fake := newTestS3(t)
	ctx := context.Background()

	if err := store.Put(ctx, "itineraries/u1/doc.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := fake.objects["/trips/itineraries/u1/doc.json"]; !ok {
		t.Fatalf("expected path-style object, have %v", fake.objects)
	}

	data, err := store.Get(ctx, "itineraries/u1/doc.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected body %s", data)
	}

	if _, err := store.Get(ctx, "missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	mem := NewMemoryStore()
	archive := NewArchive(mem, "/itineraries/")
	ctx := context.Background()

	key, err := archive.Save(ctx, Snapshot{
		UserID:   "u1",
		Title:    "Seoul trip",
		Revision: 3,
		Mode:     "meal",
		Tables:   json.RawMessage(`{"2025-06-02":{}}`),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if key != "itineraries/u1/Seoul%20trip/rev-000003.json" {
		t.Fatalf("key = %s", key)
	}

	snap, err := archive.Load(ctx, "u1", "Seoul trip", 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Mode != "meal" || snap.SavedAt.IsZero() || !strings.Contains(string(snap.Tables), "2025-06-02") {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if _, err := archive.Load(ctx, "u1", "Seoul trip", 4); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewArchiveNilStore(t *testing.T) {
	if NewArchive(nil, "x") != nil {
		t.Fatal("expected nil archive")
	}
}

func TestArchiveThroughS3(t *testing.T) {
	store, _ := newTestS3(t)
	archive := NewArchive(store, "itineraries")

	if _, err := archive.Save(context.Background(), Snapshot{UserID: "u2", Title: "Busan", Revision: 1, Tables: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, err := archive.Load(context.Background(), "u2", "Busan", 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Title != "Busan" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
