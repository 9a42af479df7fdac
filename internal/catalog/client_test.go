package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/immxrtalbeast/chat_gateway/lib/logger/handlers/slogdiscard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string, retries uint) *Client {
	return NewClient(Config{
		BaseURL:        baseURL,
		Timeout:        time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
	}, slogdiscard.NewDiscardLogger())
}

func TestGetProduct_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/12", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":12,"name":"Fender Stratocaster","price":15000000,"image_url":"/static/strat.jpg"}`))
	}))
	defer srv.Close()

	product, err := newTestClient(srv.URL, 2).GetProduct(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), product.ID)
	assert.Equal(t, "Fender Stratocaster", product.Name)
	assert.Equal(t, 15000000.0, product.Price)
}

func TestGetProduct_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).GetProduct(context.Background(), 5)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetProduct_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":5,"name":"Capo","price":75000}`))
	}))
	defer srv.Close()

	product, err := newTestClient(srv.URL, 3).GetProduct(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Capo", product.Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetProduct_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).GetProduct(context.Background(), 5)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetProduct_NotConfigured(t *testing.T) {
	_, err := newTestClient("", 1).GetProduct(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
