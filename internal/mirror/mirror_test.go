package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"mediagrab/internal/storage"
)

// newTestMirror disables the URL gate so loopback test servers can be
// fetched.
func newTestMirror(st storage.Storage, client *http.Client, maxBytes int64) *Mirror {
	m := New(st, client, maxBytes)
	m.ValidateURL = nil
	return m
}

func TestMirrorStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "video bytes")
	}))
	defer srv.Close()

	st := storage.NewMemoryStorage()
	m := newTestMirror(st, srv.Client(), 1024)

	key, err := m.MirrorStream(context.Background(), "https://example.com/v", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if key != Key("https://example.com/v") {
		t.Errorf("unexpected key %s", key)
	}

	r, err := st.Reader(key)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "video bytes" {
		t.Errorf("expected 'video bytes', got %s", data)
	}
}

func TestMirrorStreamSkipsExisting(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		io.WriteString(w, "video bytes")
	}))
	defer srv.Close()

	st := storage.NewMemoryStorage()
	m := newTestMirror(st, srv.Client(), 1024)
	ctx := context.Background()

	if _, err := m.MirrorStream(ctx, "https://example.com/v", srv.URL); err != nil {
		t.Fatal(err)
	}
	if _, err := m.MirrorStream(ctx, "https://example.com/v", srv.URL); err != nil {
		t.Fatal(err)
	}

	if fetches.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", fetches.Load())
	}
}

func TestMirrorStreamRejectsOversize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 2048))
	}))
	defer srv.Close()

	st := storage.NewMemoryStorage()
	m := newTestMirror(st, srv.Client(), 1024)

	if _, err := m.MirrorStream(context.Background(), "https://example.com/big", srv.URL); err == nil {
		t.Error("expected error for oversize stream")
	}
}

func TestMirrorStreamUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	st := storage.NewMemoryStorage()
	m := newTestMirror(st, srv.Client(), 1024)

	if _, err := m.MirrorStream(context.Background(), "https://example.com/v", srv.URL); err == nil {
		t.Error("expected error for upstream failure")
	}
}

func TestMirrorStreamRefusesPrivateAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("fetch must not reach a loopback address")
	}))
	defer srv.Close()

	st := storage.NewMemoryStorage()
	m := New(st, srv.Client(), 1024)

	if _, err := m.MirrorStream(context.Background(), "https://example.com/v", srv.URL); err == nil {
		t.Error("expected loopback delivery URL to be refused")
	}
	if exists, _ := st.Exists(Key("https://example.com/v")); exists {
		t.Error("nothing should be stored for a refused URL")
	}
}

func TestKeyIsStablePerURL(t *testing.T) {
	a := Key("https://example.com/v")
	b := Key("https://example.com/v")
	c := Key("https://example.com/other")

	if a != b {
		t.Error("key must be deterministic")
	}
	if a == c {
		t.Error("different URLs must map to different keys")
	}
	if !strings.HasPrefix(a, "media/") {
		t.Errorf("key should live under media/, got %s", a)
	}
}
