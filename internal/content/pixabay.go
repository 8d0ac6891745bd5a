// Package content fetches notification media from the Pixabay image
// search API. A topic with no hits is "no media", not an error.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "cheerbot/pkg/logx"
)

// Provider returns a media URL for a topic, or "" when nothing suitable
// is available.
type Provider interface {
	Fetch(ctx context.Context, topic string) (string, error)
}

const defaultBaseURL = "https://pixabay.com/api/"

type Config struct {
	APIKey  string
	BaseURL string        // override for tests; defaults to the public API
	Timeout time.Duration // per-request; 0 means 8s
	PerPage int           // result window to pick from; 0 means 50
}

type Pixabay struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
	pick func(n int) int
}

func NewPixabay(cfg Config, log logx.Logger) (*Pixabay, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("pixabay api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 50
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pixabay{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
		pick: rand.Intn,
	}, nil
}

type searchResponse struct {
	Hits []struct {
		WebformatURL string `json:"webformatURL"`
	} `json:"hits"`
}

// Fetch returns one randomly chosen image URL matching topic, or "" when
// the search yields nothing.
func (p *Pixabay) Fetch(ctx context.Context, topic string) (string, error) {
	q := url.Values{}
	q.Set("key", p.cfg.APIKey)
	q.Set("q", topic)
	q.Set("image_type", "photo")
	q.Set("per_page", fmt.Sprint(p.cfg.PerPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pixabay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("pixabay search failed: http=%d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("pixabay decode: %w", err)
	}
	if len(out.Hits) == 0 {
		p.log.Debug("no images for topic", logx.String("topic", topic))
		return "", nil
	}
	return out.Hits[p.pick(len(out.Hits))].WebformatURL, nil
}
