package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// PostgREST implements MessageStore against a Supabase/PostgREST messages
// table. All requests carry the project API key and are bounded by the
// configured HTTP client timeout.
type PostgREST struct {
	messagesURL string
	apiKey      string
	httpClient  *http.Client
}

// NewPostgREST creates a gateway for the messages table under the given
// Supabase project URL, e.g. "https://xyz.supabase.co".
func NewPostgREST(projectURL, apiKey string, timeout time.Duration) *PostgREST {
	return &PostgREST{
		messagesURL: strings.TrimSuffix(projectURL, "/") + "/rest/v1/messages",
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// row mirrors one element of a PostgREST response for the messages table.
// created_at is kept raw because Supabase emits both offset and offset-less
// timestamp renderings depending on the column type.
type row struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Notified  bool   `json:"notified"`
}

func (r row) message() Message {
	return Message{
		ID:        r.ID,
		Author:    r.Author,
		Content:   r.Content,
		CreatedAt: parseTimestamp(r.CreatedAt),
		Notified:  r.Notified,
	}
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (p *PostgREST) do(ctx context.Context, method, rawURL, prefer string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("store returned %d: %s", resp.StatusCode, string(detail))
	}
	return resp, nil
}

// Append inserts a message with notified=false and returns the generated id.
func (p *PostgREST) Append(ctx context.Context, author, content string) (int64, error) {
	resp, err := p.do(ctx, http.MethodPost, p.messagesURL, "return=representation", map[string]any{
		"author":   author,
		"content":  content,
		"notified": false,
	})
	if err != nil {
		return 0, fmt.Errorf("appending message: %w", err)
	}
	defer resp.Body.Close()

	var created []row
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("decoding created message: %w", err)
	}
	if len(created) == 0 {
		return 0, fmt.Errorf("store returned no created row")
	}
	return created[0].ID, nil
}

// Recent returns the most recent limit messages, oldest first. PostgREST
// only pairs a row limit with its own ordering, so the query runs newest
// first and is reversed here.
func (p *PostgREST) Recent(ctx context.Context, limit int) ([]Message, error) {
	rawURL := p.messagesURL +
		"?select=id,author,content,created_at,notified" +
		"&order=created_at.desc&limit=" + strconv.Itoa(limit)

	resp, err := p.do(ctx, http.MethodGet, rawURL, "", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching recent messages: %w", err)
	}
	defer resp.Body.Close()

	var rows []row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding recent messages: %w", err)
	}

	out := make([]Message, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.message()
	}
	return out, nil
}

// Notified reports the current notification flag for a message.
func (p *PostgREST) Notified(ctx context.Context, id int64) (bool, error) {
	rawURL := p.messagesURL + "?id=eq." + strconv.FormatInt(id, 10) + "&select=notified"

	resp, err := p.do(ctx, http.MethodGet, rawURL, "", nil)
	if err != nil {
		return false, fmt.Errorf("reading notified flag: %w", err)
	}
	defer resp.Body.Close()

	var rows []struct {
		Notified bool `json:"notified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return false, fmt.Errorf("decoding notified flag: %w", err)
	}
	if len(rows) == 0 {
		return false, ErrNotFound
	}
	return rows[0].Notified, nil
}

// SetNotified marks a message as notified. Safe to call repeatedly.
func (p *PostgREST) SetNotified(ctx context.Context, id int64) error {
	rawURL := p.messagesURL + "?id=eq." + strconv.FormatInt(id, 10)

	resp, err := p.do(ctx, http.MethodPatch, rawURL, "return=minimal", map[string]any{
		"notified": true,
	})
	if err != nil {
		return fmt.Errorf("setting notified flag: %w", err)
	}
	resp.Body.Close()
	return nil
}

// ClaimNotification performs a conditional update that only matches while
// notified is still false. The filter and the update execute as one
// statement on the store side, so concurrent claimants for the same id
// cannot both see a matched row.
func (p *PostgREST) ClaimNotification(ctx context.Context, id int64) (bool, error) {
	rawURL := p.messagesURL + "?id=eq." + strconv.FormatInt(id, 10) + "&notified=is.false"

	resp, err := p.do(ctx, http.MethodPatch, rawURL, "return=representation", map[string]any{
		"notified": true,
	})
	if err != nil {
		return false, fmt.Errorf("claiming notification: %w", err)
	}
	defer resp.Body.Close()

	var updated []row
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return false, fmt.Errorf("decoding claim result: %w", err)
	}
	return len(updated) > 0, nil
}

// Close is a no-op; the gateway holds no persistent connection.
func (p *PostgREST) Close() error {
	return nil
}
