package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tart/internal/game"

	"github.com/gorilla/websocket"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type Created struct {
	ID    int    `json:"id"`
	Model string `json:"model"`
}

type TryResult struct {
	OK    bool       `json:"ok"`
	State game.State `json:"state"`
}

// StreamMessage is one update read from a simulation stream. Payload is a
// game.State for "state" messages.
type StreamMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func simPath(id int, rest string) string {
	return fmt.Sprintf("/v1/simulations/%d%s", id, rest)
}

func (c *Client) Models(ctx context.Context) ([]string, error) {
	var out struct {
		Models []string `json:"models"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/models", nil, &out, "")
	return out.Models, err
}

func (c *Client) Simulations(ctx context.Context) ([]game.SimulationInfo, error) {
	var out struct {
		Simulations []game.SimulationInfo `json:"simulations"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/simulations", nil, &out, "")
	return out.Simulations, err
}

func (c *Client) CreateSimulation(ctx context.Context, model int) (Created, error) {
	var out Created
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/simulations", map[string]any{
		"model": model,
	}, &out, "")
	return out, err
}

func (c *Client) State(ctx context.Context, id int) (game.State, error) {
	var out game.State
	err := c.jsonRequest(ctx, http.MethodGet, simPath(id, ""), nil, &out, "")
	return out, err
}

// Tick advances the simulation. A nil delta lets the server pick its default.
func (c *Client) Tick(ctx context.Context, id int, delta *float64) (game.State, error) {
	var in any
	if delta != nil {
		in = map[string]any{"delta": *delta}
	}
	var out game.State
	err := c.jsonRequest(ctx, http.MethodPost, simPath(id, "/tick"), in, &out, "")
	return out, err
}

func (c *Client) Kinds(ctx context.Context, id int) ([]string, error) {
	var out struct {
		Kinds []string `json:"kinds"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, simPath(id, "/kinds"), nil, &out, "")
	return out.Kinds, err
}

func (c *Client) Choices(ctx context.Context, id int) ([]game.Choice, error) {
	var out struct {
		Choices []game.Choice `json:"choices"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, simPath(id, "/choices"), nil, &out, "")
	return out.Choices, err
}

func (c *Client) Choice(ctx context.Context, id, index int) (game.Choice, error) {
	var out game.Choice
	err := c.jsonRequest(ctx, http.MethodGet, simPath(id, fmt.Sprintf("/choices/%d", index)), nil, &out, "")
	return out, err
}

func (c *Client) ChoiceKind(ctx context.Context, id, index int) (string, error) {
	var out struct {
		Kind string `json:"kind"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, simPath(id, fmt.Sprintf("/choices/%d/kind", index)), nil, &out, "")
	return out.Kind, err
}

func (c *Client) TryChoice(ctx context.Context, id int, choice game.Choice, idem string) (TryResult, error) {
	var out TryResult
	err := c.jsonRequest(ctx, http.MethodPost, simPath(id, "/choices/try"), choice, &out, idem)
	return out, err
}

func (c *Client) History(ctx context.Context, id int) ([]game.Choice, error) {
	var out struct {
		History []game.Choice `json:"history"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, simPath(id, "/history"), nil, &out, "")
	return out.History, err
}

func (c *Client) Curves(ctx context.Context, id int) ([]game.CurveView, error) {
	var out struct {
		Curves []game.CurveView `json:"curves"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, simPath(id, "/curves"), nil, &out, "")
	return out.Curves, err
}

func (c *Client) Curve(ctx context.Context, id, index int) (game.CurveView, error) {
	var out game.CurveView
	err := c.jsonRequest(ctx, http.MethodGet, simPath(id, fmt.Sprintf("/curves/%d", index)), nil, &out, "")
	return out, err
}

func (c *Client) EditCurve(ctx context.Context, id, index int, edit game.CurveEdit) (game.CurveView, error) {
	var out game.CurveView
	err := c.jsonRequest(ctx, http.MethodPatch, simPath(id, fmt.Sprintf("/curves/%d", index)), edit, &out, "")
	return out, err
}

// Watch streams updates for simulation id to fn until ctx is cancelled, the
// server closes the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, id int, fn func(StreamMessage) error) error {
	target := c.BaseURL + simPath(id, "/stream")
	switch {
	case strings.HasPrefix(target, "https://"):
		target = "wss://" + strings.TrimPrefix(target, "https://")
	case strings.HasPrefix(target, "http://"):
		target = "ws://" + strings.TrimPrefix(target, "http://")
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("api status %d: %w", resp.StatusCode, err)
		}
		return err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil
			}
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError is returned for any non-2xx API response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err is an API response with the given status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
