// Package qdrant stores session collections in a Qdrant server over its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.SessionIndex = (*SessionIndex)(nil)

type Config struct {
	URL       string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// SessionIndex maps each session to one Qdrant collection using cosine distance.
type SessionIndex struct {
	url       string
	apiKey    string
	dimension int
	client    *http.Client
}

type statusError struct {
	method string
	path   string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: status %d: %s", e.method, e.path, e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

type pointPayload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	Order  int    `json:"order"`
}

type point struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload pointPayload `json:"payload"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	Filter      *filter   `json:"filter,omitempty"`
}

type filter struct {
	Must []condition `json:"must"`
}

type condition struct {
	Key   string `json:"key"`
	Match match  `json:"match"`
}

type match struct {
	Value string `json:"value"`
}

type searchResponse struct {
	Result []struct {
		Score   float64      `json:"score"`
		Payload pointPayload `json:"payload"`
	} `json:"result"`
}

// NewSessionIndex creates a Qdrant-backed session index.
func NewSessionIndex(cfg Config) *SessionIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &SessionIndex{
		url:       strings.TrimRight(cfg.URL, "/"),
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

func collectionPath(sessionID string) string {
	return "/collections/" + url.PathEscape(domain.CollectionName(sessionID))
}

func (s *SessionIndex) Provision(ctx context.Context, sessionID string) error {
	if err := s.Drop(ctx, sessionID); err != nil {
		return err
	}
	if err := s.create(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndex, err)
	}
	return nil
}

func (s *SessionIndex) create(ctx context.Context, sessionID string) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, collectionPath(sessionID), body, nil)
}

func (s *SessionIndex) Upsert(ctx context.Context, sessionID string, points []domain.IndexedPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	body := map[string]any{"points": toPoints(points)}
	path := collectionPath(sessionID) + "/points?wait=true"

	err := s.do(ctx, http.MethodPut, path, body, nil)
	if isNotFound(err) {
		// Never provisioned: create the collection and try once more.
		if err = s.create(ctx, sessionID); err == nil {
			err = s.do(ctx, http.MethodPut, path, body, nil)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndex, err)
	}
	return len(points), nil
}

func toPoints(points []domain.IndexedPoint) []point {
	out := make([]point, len(points))
	for i, p := range points {
		out[i] = point{
			ID:     uuid.NewString(),
			Vector: p.Vector,
			Payload: pointPayload{
				Text:   p.Text,
				Source: p.Source,
				Page:   p.Page,
				Order:  p.Order,
			},
		}
	}
	return out
}

func (s *SessionIndex) Query(ctx context.Context, sessionID string, vector []float32, k int, f port.QueryFilter) ([]domain.ScoredPoint, error) {
	if k <= 0 {
		return nil, nil
	}

	req := searchRequest{
		Vector:      vector,
		Limit:       k,
		WithPayload: true,
	}
	if f.Source != "" {
		req.Filter = &filter{Must: []condition{{Key: "source", Match: match{Value: f.Source}}}}
	}

	var resp searchResponse
	err := s.do(ctx, http.MethodPost, collectionPath(sessionID)+"/points/search", req, &resp)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndex, err)
	}

	hits := make([]domain.ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.ScoredPoint{
			Point: domain.IndexedPoint{
				Text:   r.Payload.Text,
				Source: r.Payload.Source,
				Page:   r.Payload.Page,
				Order:  r.Payload.Order,
			},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (s *SessionIndex) Drop(ctx context.Context, sessionID string) error {
	err := s.do(ctx, http.MethodDelete, collectionPath(sessionID), nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: %v", domain.ErrIndex, err)
	}
	return nil
}

func (s *SessionIndex) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *SessionIndex) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{method: method, path: path, code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
