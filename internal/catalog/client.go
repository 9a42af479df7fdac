package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("catalog unavailable")
	ErrNotConfigured   = errors.New("catalog base url is not configured")
)

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     uint
	InitialBackoff time.Duration
}

// Client looks up product summaries in the catalog service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     uint
	initialBackoff time.Duration
	log            *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		log:            log,
	}
}

type productResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url"`
}

// GetProduct fetches one product, retrying transient failures with exponential backoff.
// A missing product is reported as ErrProductNotFound without retrying.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*domain.ProductSummary, error) {
	const op = "catalog.client.getProduct"
	log := c.log.With(slog.String("op", op), slog.Int64("product_id", productID))

	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff

	product, err := backoff.Retry(ctx, func() (*domain.ProductSummary, error) {
		return c.fetch(ctx, productID)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug("retrying product lookup", slog.String("error", err.Error()), slog.Duration("next", next))
		}),
	)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return product, nil
}

func (c *Client) fetch(ctx context.Context, productID int64) (*domain.ProductSummary, error) {
	url := c.baseURL + "/api/products/" + strconv.FormatInt(productID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(ErrProductNotFound)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("catalog responded %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("catalog responded %d", resp.StatusCode))
	}

	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode product: %w", err))
	}
	if body.ID == 0 {
		body.ID = productID
	}

	return &domain.ProductSummary{
		ID:       body.ID,
		Name:     body.Name,
		Price:    body.Price,
		ImageURL: body.ImageURL,
	}, nil
}
