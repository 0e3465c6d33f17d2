package availability

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCheckAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pastry/Millefeuille":
			_, _ = w.Write([]byte(`{"name":"Millefeuille","status":"available"}`))
		case "/pastry/Eclair Chocolat":
			_, _ = w.Write([]byte(`{"name":"Eclair Chocolat","status":"unknown"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(testLogger(), srv.URL)

	ok, err := c.CheckAvailable(context.Background(), "Millefeuille")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.CheckAvailable(context.Background(), "Eclair Chocolat")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = c.CheckAvailable(context.Background(), "Donut")
	require.Error(t, err, "unknown product is a lookup failure")
}

func TestCheckAvailableStatusCaseInsensitive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Baguette","status":"AVAILABLE"}`))
	}))
	defer srv.Close()

	ok, err := NewClient(testLogger(), srv.URL).CheckAvailable(context.Background(), "Baguette")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckAvailableRespectsContext(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := NewClient(testLogger(), srv.URL).CheckAvailable(ctx, "Millefeuille")
		done <- err
	}()

	<-started
	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("lookup did not abort on cancellation")
	}
}

func TestCheckAvailableMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(testLogger(), srv.URL).CheckAvailable(context.Background(), "Millefeuille")
	require.Error(t, err)
}
