package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/vcs"
)

// Client is a storage.Adapter backed by a remote Server, the "network
// storage adapter" form: every call is a synchronous HTTP round trip, and
// ApplyUpdate is only as atomic as the remote's own backing adapter.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient targets a remote.Server mounted at baseURL (no trailing slash).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) GetCommitGraph(ctx context.Context) (*vcs.Graph, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/graph", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: get graph: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: get graph: status %d", resp.StatusCode)
	}
	var w graphWire
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("remote: get graph: decode: %w", err)
	}
	return fromWire(w), nil
}

func (c *Client) GetCommits(ctx context.Context, ids []string) ([]vcs.Commit, error) {
	body, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/commits", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: get commits: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: remote lookup", vcs.ErrUnknownCommit)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: get commits: status %d", resp.StatusCode)
	}
	var commits []vcs.Commit
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return nil, fmt.Errorf("remote: get commits: decode: %w", err)
	}
	return commits, nil
}

func (c *Client) ApplyUpdate(ctx context.Context, update storage.InternalRepoUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: apply update: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote: apply update: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) EraseStorage(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/erase", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: erase: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote: erase: status %d", resp.StatusCode)
	}
	return nil
}

// Subscribe opens a websocket connection to the server's push endpoint and
// returns a channel of branch names touched by each remote update, closed
// when the connection drops. wsURL must use the ws:// or wss:// scheme.
func Subscribe(ctx context.Context, wsURL string) (<-chan []string, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: subscribe: %w", err)
	}
	out := make(chan []string, 16)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var msg updateMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case out <- msg.Branches:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
