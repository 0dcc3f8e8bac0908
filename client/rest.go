package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// API is the subset of server operations the message controller needs.
// Implemented by REST; split out so controller tests can fake the server.
type API interface {
	ListMessages(ctx context.Context, workspaceID int64, channelID *int64, limit int, before *time.Time) ([]Message, error)
	SendMessage(ctx context.Context, workspaceID int64, channelID *int64, content, clientTag string) (*Message, error)
	UpdateMessage(ctx context.Context, id int64, content string) (*Message, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// APIError is a structured error returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// REST is an authenticated HTTP client for the workchat API.
type REST struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewREST creates a REST client. baseURL is the server origin without a
// trailing slash, token a JWT obtained from Login or Register.
func NewREST(baseURL, token string) *REST {
	return &REST{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Register creates an account and returns an authenticated client.
func Register(ctx context.Context, baseURL, email, name, password string) (*REST, User, error) {
	return authenticate(ctx, baseURL, "/api/register", map[string]string{
		"email": email, "name": name, "password": password,
	})
}

// Login authenticates an existing account and returns a client.
func Login(ctx context.Context, baseURL, email, password string) (*REST, User, error) {
	return authenticate(ctx, baseURL, "/api/login", map[string]string{
		"email": email, "password": password,
	})
}

func authenticate(ctx context.Context, baseURL, path string, body map[string]string) (*REST, User, error) {
	c := NewREST(baseURL, "")
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, User{}, err
	}
	c.token = resp.Token
	return c, resp.User, nil
}

// Token returns the bearer token, for WebSocket dialing.
func (c *REST) Token() string {
	return c.token
}

// ListMessages fetches message history in ascending creation order.
func (c *REST) ListMessages(ctx context.Context, workspaceID int64, channelID *int64, limit int, before *time.Time) ([]Message, error) {
	q := url.Values{}
	if channelID != nil {
		q.Set("channelId", strconv.FormatInt(*channelID, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before != nil {
		q.Set("before", before.Format(time.RFC3339))
	}
	path := fmt.Sprintf("/api/messages/workspace/%d", workspaceID)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var messages []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage persists a message. clientTag is echoed back by the server.
func (c *REST) SendMessage(ctx context.Context, workspaceID int64, channelID *int64, content, clientTag string) (*Message, error) {
	body := map[string]any{
		"workspaceId": workspaceID,
		"content":     content,
		"clientTag":   clientTag,
	}
	if channelID != nil {
		body["channelId"] = *channelID
	}
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage replaces a message's content. Author-only.
func (c *REST) UpdateMessage(ctx context.Context, id int64, content string) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/api/messages/%d", id)
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"content": content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes a message. Author-only.
func (c *REST) DeleteMessage(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", id), nil, nil)
}

// CreateChannel creates a channel; the caller is enrolled automatically.
func (c *REST) CreateChannel(ctx context.Context, workspaceID int64, name, kind string, memberIDs []int64) (*Channel, error) {
	body := map[string]any{
		"workspaceId": workspaceID,
		"name":        name,
	}
	if kind != "" {
		body["type"] = kind
	}
	if len(memberIDs) > 0 {
		body["memberIds"] = memberIDs
	}
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/api/channels", body, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListChannels fetches the channels visible to the caller in a workspace.
func (c *REST) ListChannels(ctx context.Context, workspaceID int64) ([]Channel, error) {
	var channels []Channel
	path := fmt.Sprintf("/api/channels/workspace/%d", workspaceID)
	if err := c.do(ctx, http.MethodGet, path, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// JoinChannel enrolls the caller into a public channel.
func (c *REST) JoinChannel(ctx context.Context, channelID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/channels/%d/join", channelID), nil, nil)
}

// LeaveChannel removes the caller from a channel.
func (c *REST) LeaveChannel(ctx context.Context, channelID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/channels/%d/leave", channelID), nil, nil)
}

func (c *REST) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var wrapped struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Error.Code != "" {
			apiErr.Code = wrapped.Error.Code
			apiErr.Message = wrapped.Error.Message
		} else {
			apiErr.Message = string(data)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

var _ API = (*REST)(nil)
