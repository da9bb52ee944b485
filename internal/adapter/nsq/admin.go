package nsq

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

// Admin talks to the nsqd HTTP API. Creating a topic and channel up front
// makes messages published before the first consumer connects persist on the
// channel instead of only on the topic.
type Admin struct {
	baseURL string
	client  *http.Client
}

func NewAdmin(httpAddr string) *Admin {
	base := httpAddr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Admin{
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureQueue creates the topic and, when channel is non-empty, the channel.
// Both calls are idempotent on the nsqd side.
func (a *Admin) EnsureQueue(ctx context.Context, topic, channel string) error {
	q := url.Values{"topic": {topic}}
	if err := a.post(ctx, "/topic/create", q); err != nil {
		return err
	}
	if channel == "" {
		return nil
	}
	q.Set("channel", channel)
	return a.post(ctx, "/channel/create", q)
}

func (a *Admin) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/ping", nil)
	if err != nil {
		return err
	}
	return a.do(req)
}

func (a *Admin) post(ctx context.Context, path string, q url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return a.do(req)
}

func (a *Admin) do(req *http.Request) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrBrokerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", apperr.ErrBrokerUnavailable, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
