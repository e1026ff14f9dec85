// Package remote is the client for the bot-builder service's bot API.
//
// Every call is signed independently; nothing is retried. A non-2xx response
// becomes a RemoteCallError carrying the status and response body.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/botsync/internal/bot"
)

// DefaultBaseURL is the production client API endpoint.
const DefaultBaseURL = "https://clients.csml.dev/v1"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

const userAgent = "botsync/1.0"

// API paths, relative to the base URL.
const (
	PathBot      = "/api/bot"
	PathFlows    = "/api/bot/flows"
	PathBuild    = "/api/bot/build"
	PathLabel    = "/api/bot/label"
	maxErrorBody = 64 * 1024
)

// Signer attaches authentication headers to an outgoing request.
type Signer interface {
	Apply(*http.Request) error
}

// Client talks to one bot through the client API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     Signer
}

// New creates a client. An empty baseURL means DefaultBaseURL; a nil
// httpClient gets DefaultTimeout.
func New(baseURL string, signer Signer, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		signer:     signer,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchFlows lists the flows the service currently holds. Unlike the
// mutating calls, an undecodable body is an error.
func (c *Client) FetchFlows(ctx context.Context) ([]bot.RemoteFlow, error) {
	data, err := c.do(ctx, http.MethodGet, PathFlows, nil)
	if err != nil {
		return nil, err
	}
	var flows []bot.RemoteFlow
	if err := json.Unmarshal(data, &flows); err != nil {
		return nil, fmt.Errorf("GET %s: decode flows: %w", PathFlows, err)
	}
	if flows == nil {
		flows = []bot.RemoteFlow{}
	}
	return flows, nil
}

// CreateFlow creates a flow. When the service does not echo the created
// document, the returned flow carries only what was sent.
func (c *Client) CreateFlow(ctx context.Context, flow bot.Flow) (bot.RemoteFlow, error) {
	data, err := c.do(ctx, http.MethodPost, PathFlows, flow)
	if err != nil {
		return bot.RemoteFlow{}, err
	}
	var created bot.RemoteFlow
	if decodeOptional(http.MethodPost, PathFlows, data, &created) {
		return created, nil
	}
	sent, err := bot.Merge(bot.RemoteFlow{}, flow)
	if err != nil {
		return bot.RemoteFlow{}, err
	}
	return sent.RemoteFlow, nil
}

// UpdateFlow replaces a flow, addressed by its remote id.
func (c *Client) UpdateFlow(ctx context.Context, flow bot.MergedFlow) (bot.RemoteFlow, error) {
	if flow.ID == "" {
		return bot.RemoteFlow{}, fmt.Errorf("update flow %q: missing remote id", flow.Name)
	}
	path := flowPath(flow.ID)
	data, err := c.do(ctx, http.MethodPut, path, flow)
	if err != nil {
		return bot.RemoteFlow{}, err
	}
	var updated bot.RemoteFlow
	if decodeOptional(http.MethodPut, path, data, &updated) {
		return updated, nil
	}
	return flow.RemoteFlow, nil
}

// DeleteFlow removes a flow, addressed by its remote id. The flow document is
// sent as the request body.
func (c *Client) DeleteFlow(ctx context.Context, flow bot.RemoteFlow) error {
	if flow.ID == "" {
		return fmt.Errorf("delete flow %q: missing remote id", flow.Name)
	}
	_, err := c.do(ctx, http.MethodDelete, flowPath(flow.ID), flow)
	return err
}

type rulesBody struct {
	AiRules bot.AiRuleSet `json:"airules"`
}

// ReplaceRules replaces the bot's AI rules wholesale.
func (c *Client) ReplaceRules(ctx context.Context, rules bot.AiRuleSet) error {
	_, err := c.do(ctx, http.MethodPut, PathBot, rulesBody{AiRules: rules})
	return err
}

// TriggerBuild asks the service to build the bot.
func (c *Client) TriggerBuild(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, PathBuild, nil)
	return err
}

type labelBody struct {
	Label string `json:"label"`
}

// CreateSnapshot labels the bot's current published state.
func (c *Client) CreateSnapshot(ctx context.Context, name string) (bot.SnapshotLabel, error) {
	if name == "" {
		return bot.SnapshotLabel{}, errors.New("create snapshot: empty name")
	}
	data, err := c.do(ctx, http.MethodPost, PathLabel, labelBody{Label: name})
	if err != nil {
		return bot.SnapshotLabel{}, err
	}

	var resp struct {
		Label string `json:"label"`
		Name  string `json:"name"`
	}
	label := bot.SnapshotLabel{Name: name}
	switch {
	case !decodeOptional(http.MethodPost, PathLabel, data, &resp):
	case resp.Label != "":
		label.Name = resp.Label
	case resp.Name != "":
		label.Name = resp.Name
	}
	return label, nil
}

// DeleteSnapshot removes a label by name.
func (c *Client) DeleteSnapshot(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("delete snapshot: empty name")
	}
	_, err := c.do(ctx, http.MethodDelete, PathLabel+"/"+url.PathEscape(name), nil)
	return err
}

func flowPath(id string) string {
	return PathFlows + "/" + url.PathEscape(id)
}

// do performs one signed request and returns the response body of a 2xx
// response.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: marshal body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if err := c.signer.Apply(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	dur := time.Since(start)
	if err != nil {
		slog.Error("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", dur),
			slog.Any("error", err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	slog.Debug("request done",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", dur))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newRemoteCallError(method, path, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// decodeOptional decodes a success body the service may leave empty or
// fill with something other than JSON. It reports whether out was set.
func decodeOptional(method, path string, data []byte, out any) bool {
	if len(bytes.TrimSpace(data)) == 0 {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Debug("ignoring undecodable response body",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("error", err))
		return false
	}
	return true
}
