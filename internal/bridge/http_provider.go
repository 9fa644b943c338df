package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"libras-central/internal/config"
)

// HTTPProvider talks to the hosted meet bridge over its REST API:
//
//	POST   {base}/v1/rooms          -> 201 {"name":..., "url":...}
//	DELETE {base}/v1/rooms/{name}   -> 204 (404 treated as already gone)
//	GET    {base}/v1/health         -> 200
//
// Authentication is a bearer API key.
type HTTPProvider struct {
	baseURL string
	apiKey  string

	// client is injectable for tests; its Timeout enforces request deadlines.
	client *http.Client
}

func NewHTTPProvider(cfg config.BridgeConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("bridge: base url is required")
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

func (p *HTTPProvider) Name() string { return "meetbridge" }

func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	resp, err := p.do(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge: health returned %d", resp.StatusCode)
	}
	return nil
}

func (p *HTTPProvider) CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error) {
	if req.TenantID == "" || req.RoomName == "" {
		return Room{}, errors.New("bridge: tenant_id and room_name required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Room{}, err
	}

	resp, err := p.do(ctx, http.MethodPost, "/v1/rooms", bytes.NewReader(body))
	if err != nil {
		return Room{}, fmt.Errorf("bridge: create room: %w", err)
	}
	defer resp.Body.Close()

	// 200 is returned when the named room already exists; the bridge hands
	// back the existing session, which keeps allocation retry-safe.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Room{}, fmt.Errorf("bridge: create room returned %d", resp.StatusCode)
	}

	var room Room
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&room); err != nil {
		return Room{}, fmt.Errorf("bridge: decode room: %w", err)
	}
	if room.URL == "" {
		return Room{}, errors.New("bridge: room url missing in response")
	}
	if room.Name == "" {
		room.Name = req.RoomName
	}
	return room, nil
}

func (p *HTTPProvider) DeleteRoom(ctx context.Context, req DeleteRoomRequest) error {
	if req.RoomName == "" {
		return errors.New("bridge: room_name required")
	}

	resp, err := p.do(ctx, http.MethodDelete, "/v1/rooms/"+url.PathEscape(req.RoomName), nil)
	if err != nil {
		return fmt.Errorf("bridge: delete room: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		// Not found means the room is already gone; teardown is idempotent.
		return nil
	default:
		return fmt.Errorf("bridge: delete room returned %d", resp.StatusCode)
	}
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	// Request deadlines are enforced by the client's Timeout.
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.client.Do(req)
}
