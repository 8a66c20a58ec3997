package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/wayfarer/internal/auth"
	"github.com/friendsincode/wayfarer/internal/skeleton"
)

const testCatalog = `{"places": [
	{"name": "Seoul Station", "category": "start", "lat": 37.5547, "lng": 126.9707, "anchor": true},
	{"name": "Lotte Hotel", "category": "accommodation", "lat": 37.5651, "lng": 126.9810, "anchor": true},
	{"place_id": "a1", "name": "Gyeongbokgung", "category": "tourist_attraction", "lat": 37.5796, "lng": 126.9770, "rating": 4.6, "review_count": 900},
	{"place_id": "a2", "name": "N Seoul Tower", "category": "tourist_attraction", "lat": 37.5512, "lng": 126.9882, "rating": 4.4, "review_count": 800},
	{"place_id": "m1", "name": "Tosokchon", "category": "restaurant", "lat": 37.5778, "lng": 126.9714, "rating": 4.2, "review_count": 700}
]}`

const testRequest = `{
	"start_date": "2025-06-02",
	"end_date": "2025-06-03",
	"start_time": "10:00",
	"end_time": "18:00",
	"start_location": "Seoul Station",
	"end_location": "Lotte Hotel",
	"focus_mode": "attraction"
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPlanOffline(t *testing.T) {
	dir := t.TempDir()
	opts := planOptions{
		requestPath: writeFile(t, dir, "request.json", testRequest),
		catalogPath: writeFile(t, dir, "catalog.json", testCatalog),
		weightsPath: writeFile(t, dir, "weights.yaml", "w_dist: 0.9\nw_trust: 0.2\n"),
		title:       "Seoul",
	}

	res, err := planOffline(context.Background(), opts, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Revision)
	assert.Len(t, res.Tables, 2)
	assert.Contains(t, res.Tables, "2025-06-02")
	assert.Contains(t, res.Tables, "2025-06-03")
}

func TestPlanOfflineBasicLeavesSlotsEmpty(t *testing.T) {
	dir := t.TempDir()
	opts := planOptions{
		requestPath: writeFile(t, dir, "request.json", testRequest),
		catalogPath: writeFile(t, dir, "catalog.json", testCatalog),
		title:       "Seoul",
		basic:       true,
	}

	res, err := planOffline(context.Background(), opts, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, res.Filled)
	assert.NotEmpty(t, res.Tables["2025-06-02"].Schedule)
}

func TestPlanOfflineUnknownAnchor(t *testing.T) {
	dir := t.TempDir()
	request := strings.Replace(testRequest, "Seoul Station", "Atlantis", 1)
	opts := planOptions{
		requestPath: writeFile(t, dir, "request.json", request),
		catalogPath: writeFile(t, dir, "catalog.json", testCatalog),
		title:       "Seoul",
	}

	_, err := planOffline(context.Background(), opts, zerolog.Nop())
	assert.ErrorIs(t, err, skeleton.ErrAnchorUnresolved)
}

func TestReadCatalogAcceptsBareArray(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.json", `[{"name": "Cafe Onion", "category": "cafe"}]`)
	batch, err := readCatalog(path)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "Cafe Onion", batch[0].Name)

	_, err = readCatalog(writeFile(t, dir, "empty.json", "  "))
	assert.Error(t, err)
}

func TestReadWeightsKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	v, err := readWeights(writeFile(t, dir, "w.json", `{"w_dist": 0.1}`))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, v.Dist, 1e-9)
	assert.InDelta(t, 0.4, v.Cluster, 1e-9)
}

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--user", "alice", "--secret", "cli-secret"})
	require.NoError(t, rootCmd.Execute())

	claims, err := auth.Parse([]byte("cli-secret"), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
}
