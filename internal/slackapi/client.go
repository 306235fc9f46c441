// Package slackapi is a minimal typed client for the Slack Web API methods
// the bots need: list items, chat messages, user lookup, conversations.
package slackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://slack.com/api"

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func New(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
	}
}

type AuthTestResult struct {
	TeamID string
	UserID string
	Team   string
	User   string
	URL    string
}

type authTestResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	TeamID string `json:"team_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Team   string `json:"team,omitempty"`
	User   string `json:"user,omitempty"`
	URL    string `json:"url,omitempty"`
}

func (c *Client) AuthTest(ctx context.Context) (AuthTestResult, error) {
	body, status, _, err := c.postJSON(ctx, "/auth.test", nil)
	if err != nil {
		return AuthTestResult{}, err
	}
	if status < 200 || status >= 300 {
		return AuthTestResult{}, fmt.Errorf("slack auth.test http %d", status)
	}
	var out authTestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return AuthTestResult{}, err
	}
	if !out.OK {
		return AuthTestResult{}, apiError("auth.test", out.Error)
	}
	return AuthTestResult{
		TeamID: strings.TrimSpace(out.TeamID),
		UserID: strings.TrimSpace(out.UserID),
		Team:   strings.TrimSpace(out.Team),
		User:   strings.TrimSpace(out.User),
		URL:    strings.TrimSpace(out.URL),
	}, nil
}

// ListItemField is one keyed field of a list record. The value shape varies
// by column type: free text, a scalar (date string, option id, bool), or a
// user-reference list.
type ListItemField struct {
	Key   string          `json:"key"`
	Text  string          `json:"text,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Users []string        `json:"user,omitempty"`
}

// ValueString returns the field value when it is a JSON string.
func (f ListItemField) ValueString() string {
	if len(f.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Value, &s); err != nil {
		return ""
	}
	return s
}

// ValueBool returns the field value when it is a JSON bool.
func (f ListItemField) ValueBool() bool {
	if len(f.Value) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(f.Value, &b); err != nil {
		return false
	}
	return b
}

type ListItem struct {
	ID     string          `json:"id"`
	Fields []ListItemField `json:"fields,omitempty"`
}

type listItemsRequest struct {
	ListID string `json:"list_id"`
	Limit  int    `json:"limit,omitempty"`
}

type listItemsResponse struct {
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
	Items []ListItem `json:"items,omitempty"`
}

// ListItems fetches raw records from a Slack list via slackLists.items.list.
func (c *Client) ListItems(ctx context.Context, listID string, limit int) ([]ListItem, error) {
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return nil, fmt.Errorf("list_id is required")
	}
	body, status, _, err := c.postJSON(ctx, "/slackLists.items.list", listItemsRequest{
		ListID: listID,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("slack slackLists.items.list http %d", status)
	}
	var out listItemsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, apiError("slackLists.items.list", out.Error)
	}
	return out.Items, nil
}

type PostMessageRequest struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Blocks   any    `json:"blocks,omitempty"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// PostMessage delivers a chat message, retrying rate limits and server
// errors up to three attempts with Retry-After awareness.
func (c *Client) PostMessage(ctx context.Context, req PostMessageRequest) error {
	req.Channel = strings.TrimSpace(req.Channel)
	req.Text = strings.TrimSpace(req.Text)
	req.ThreadTS = strings.TrimSpace(req.ThreadTS)
	if req.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if req.Text == "" {
		return fmt.Errorf("text is required")
	}
	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, status, headers, err := c.postJSON(ctx, "/chat.postMessage", req)
		if err != nil {
			lastErr = err
		} else {
			var out postMessageResponse
			if parseErr := json.Unmarshal(body, &out); parseErr != nil {
				lastErr = parseErr
			} else if status < 200 || status >= 300 {
				lastErr = fmt.Errorf("slack chat.postMessage http %d", status)
			} else if out.OK {
				return nil
			} else {
				lastErr = apiError("chat.postMessage", out.Error)
			}
		}

		if attempt >= maxAttempts {
			break
		}
		wait, retryable := retryDelay(status, headers, attempt)
		if !retryable {
			break
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

type lookupUserResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

// LookupUserByEmail resolves an email address to a Slack user id. A
// not-found answer is an error carrying the Slack error code.
func (c *Client) LookupUserByEmail(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	body, status, _, err := c.getJSON(ctx, "/users.lookupByEmail", url.Values{"email": {email}})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("slack users.lookupByEmail http %d", status)
	}
	var out lookupUserResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if !out.OK {
		return "", apiError("users.lookupByEmail", out.Error)
	}
	id := strings.TrimSpace(out.User.ID)
	if id == "" {
		return "", fmt.Errorf("slack users.lookupByEmail returned empty user id")
	}
	return id, nil
}

type openConversationRequest struct {
	Users string `json:"users"`
}

type openConversationResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

// OpenConversation opens (or resumes) a direct conversation with the given
// user ids and returns the conversation channel id.
func (c *Client) OpenConversation(ctx context.Context, userIDs []string) (string, error) {
	ids := make([]string, 0, len(userIDs))
	for _, raw := range userIDs {
		id := strings.TrimSpace(raw)
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("at least one user id is required")
	}
	body, status, _, err := c.postJSON(ctx, "/conversations.open", openConversationRequest{
		Users: strings.Join(ids, ","),
	})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("slack conversations.open http %d", status)
	}
	var out openConversationResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if !out.OK {
		return "", apiError("conversations.open", out.Error)
	}
	id := strings.TrimSpace(out.Channel.ID)
	if id == "" {
		return "", fmt.Errorf("slack conversations.open returned empty channel id")
	}
	return id, nil
}

type Message struct {
	User string `json:"user,omitempty"`
	Text string `json:"text,omitempty"`
	TS   string `json:"ts,omitempty"`
}

type threadRepliesResponse struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// ThreadReplies returns the ordered messages of a thread rooted at ts.
func (c *Client) ThreadReplies(ctx context.Context, channel, ts string, limit int) ([]Message, error) {
	channel = strings.TrimSpace(channel)
	ts = strings.TrimSpace(ts)
	if channel == "" || ts == "" {
		return nil, fmt.Errorf("channel and ts are required")
	}
	values := url.Values{"channel": {channel}, "ts": {ts}}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	body, status, _, err := c.getJSON(ctx, "/conversations.replies", values)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("slack conversations.replies http %d", status)
	}
	var out threadRepliesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, apiError("conversations.replies", out.Error)
	}
	return out.Messages, nil
}

func apiError(method, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		code = "unknown_error"
	}
	return fmt.Errorf("slack %s failed: %s", method, code)
}

func retryDelay(status int, headers http.Header, attempt int) (time.Duration, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := strings.TrimSpace(headers.Get("Retry-After"))
		if retryAfter == "" {
			return 1 * time.Second, true
		}
		secs, err := strconv.Atoi(retryAfter)
		if err != nil || secs <= 0 {
			return 1 * time.Second, true
		}
		return time.Duration(secs) * time.Second, true
	case status >= 500 && status <= 599:
		switch attempt {
		case 1:
			return 300 * time.Millisecond, true
		case 2:
			return 1 * time.Second, true
		default:
			return 2 * time.Second, true
		}
	default:
		return 0, false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, int, http.Header, error) {
	if c == nil || c.http == nil {
		return nil, 0, nil, fmt.Errorf("slack client is not initialized")
	}
	if c.token == "" {
		return nil, 0, nil, fmt.Errorf("slack token is required")
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values) ([]byte, int, http.Header, error) {
	if c == nil || c.http == nil {
		return nil, 0, nil, fmt.Errorf("slack client is not initialized")
	}
	if c.token == "" {
		return nil, 0, nil, fmt.Errorf("slack token is required")
	}
	target := c.baseURL + path
	if len(values) > 0 {
		target += "?" + values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, int, http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp.StatusCode, resp.Header, readErr
	}
	return raw, resp.StatusCode, resp.Header, nil
}
