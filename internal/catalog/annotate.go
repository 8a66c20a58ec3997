/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Annotator fills affinity and aversion scores for a user profile.
type Annotator interface {
	Annotate(ctx context.Context, candidates []Candidate, profile string) []Candidate
}

// NopAnnotator leaves scores untouched.
type NopAnnotator struct{}

// Annotate returns candidates as-is.
func (NopAnnotator) Annotate(_ context.Context, candidates []Candidate, _ string) []Candidate {
	return candidates
}

type annotateRequest struct {
	Profile string          `json:"profile"`
	Places  []annotatePlace `json:"places"`
}

type annotatePlace struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type annotateResponse struct {
	Scores map[string]struct {
		Affinity float64 `json:"affinity"`
		Aversion float64 `json:"aversion"`
	} `json:"scores"`
}

// HTTPAnnotator posts candidates to the embedding service.
type HTTPAnnotator struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewHTTPAnnotator creates an annotator for the service at baseURL.
func NewHTTPAnnotator(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPAnnotator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAnnotator{
		endpoint: strings.TrimRight(baseURL, "/") + "/annotate",
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "annotator").Logger(),
	}
}

// Annotate returns a copy of candidates with scores from the service.
// Failures degrade to zero scores.
func (a *HTTPAnnotator) Annotate(ctx context.Context, candidates []Candidate, profile string) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	if len(out) == 0 {
		return out
	}

	scores, err := a.fetch(ctx, out, profile)
	if err != nil {
		a.logger.Warn().Err(err).Int("candidates", len(out)).Msg("annotation failed, using zero scores")
		for i := range out {
			out[i].AffinityScore, out[i].AversionScore = 0, 0
		}
		return out
	}

	missing := 0
	for i := range out {
		s, ok := scores.Scores[out[i].ID]
		if !ok {
			out[i].AffinityScore, out[i].AversionScore = 0, 0
			missing++
			continue
		}
		out[i].AffinityScore, out[i].AversionScore = s.Affinity, s.Aversion
	}
	if missing > 0 {
		a.logger.Warn().Int("missing", missing).Msg("annotation response missing candidates")
	}
	return out
}

func (a *HTTPAnnotator) fetch(ctx context.Context, candidates []Candidate, profile string) (*annotateResponse, error) {
	body := annotateRequest{Profile: profile, Places: make([]annotatePlace, len(candidates))}
	for i, c := range candidates {
		body.Places[i] = annotatePlace{ID: c.ID, Name: c.Name, Category: string(c.Category)}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("annotation service returned status %d", resp.StatusCode)
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
