package datasource

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/staticmap/internal/types"
)

func TestHTTPSource_FetchTile(t *testing.T) {
	body := pngTile(t, color.RGBA{G: 255, A: 255})
	var userAgent atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())
		w.Header().Set("Content-Type", "image/png")
		w.Write(body) // nolint:errcheck
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPConfig{Timeout: 5 * time.Second, UserAgent: "staticmap-test"})
	img, err := src.FetchTile(context.Background(), srv.URL+"/17/67120/43966.png")
	require.NoError(t, err)

	r, g, _, _ := img.At(10, 10).RGBA()
	assert.Equal(t, uint32(0), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, "staticmap-test", userAgent.Load())
}

func TestHTTPSource_UnsupportedFormatMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	src := NewHTTPSource(DefaultHTTPConfig())
	_, err := src.FetchTile(context.Background(), srv.URL+"/1/0/0.gif")

	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnsupportedFormat))
	assert.Equal(t, int32(0), hits.Load())
}

func TestHTTPSource_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.png":
			http.NotFound(w, r)
		case "/garbage.png":
			w.Write([]byte("this is not an image")) // nolint:errcheck
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(DefaultHTTPConfig())

	tests := []struct {
		path   string
		reason types.FetchReason
	}{
		{"/missing.png", types.FetchReasonTransport},
		{"/garbage.png", types.FetchReasonDecode},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := src.FetchTile(context.Background(), srv.URL+tt.path)
			var fe *types.FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.reason, fe.Reason)
			assert.ErrorIs(t, err, types.ErrFetch)
		})
	}
}

func TestHTTPSource_RetriesTransientFailures(t *testing.T) {
	body := pngTile(t, color.White)
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(body) // nolint:errcheck
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPConfig{Retries: 2, Backoff: time.Millisecond})
	_, err := src.FetchTile(context.Background(), srv.URL+"/1/1/1.png")
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPSource_NoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPConfig{Retries: 3, Backoff: time.Millisecond})
	_, err := src.FetchTile(context.Background(), srv.URL+"/1/1/1.png")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	src := NewHTTPSource(HTTPConfig{Retries: 5, Backoff: time.Millisecond})
	start := time.Now()
	_, err := src.FetchTile(ctx, srv.URL+"/1/1/1.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFetch)
	assert.Less(t, time.Since(start), 2*time.Second)
}
