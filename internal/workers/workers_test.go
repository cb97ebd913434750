package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/riverqueue/river/rivertype"

	"mediagrab/internal/cache"
	"mediagrab/internal/medias"
	"mediagrab/internal/mirror"
	"mediagrab/internal/models"
	"mediagrab/internal/storage"
)

func TestDecodeMediaVideo(t *testing.T) {
	video := medias.Video{
		Parser:   medias.TypeYouTube,
		Original: "https://youtu.be/abc",
		URL:      "https://cdn.example.com/v.mp4",
		Caption:  "a title",
	}
	raw, err := json.Marshal(video)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := decodeMedia(raw)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(medias.Video)
	if !ok {
		t.Fatalf("expected Video, got %T", decoded)
	}
	if got.URL != video.URL || got.Caption != video.Caption {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

func TestDecodeMediaGroup(t *testing.T) {
	group := medias.MediaGroup{
		Parser:   medias.TypeTikTok,
		Original: "https://www.tiktok.com/@u/photo/1",
		Items: []medias.GroupItem{
			{URL: "https://cdn/1.jpg", MimeType: "image/jpeg"},
			{URL: "https://cdn/2.jpg", MimeType: "image/jpeg"},
		},
	}
	raw, err := json.Marshal(group)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := decodeMedia(raw)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(medias.MediaGroup)
	if !ok {
		t.Fatalf("expected MediaGroup, got %T", decoded)
	}
	if len(got.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(got.Items))
	}
}

func TestDecodeMediaInvalid(t *testing.T) {
	if _, err := decodeMedia([]byte("not json")); err == nil {
		t.Error("expected error for invalid payload")
	}
}

func TestWebhookDelivererDeliver(t *testing.T) {
	var gotReq deliverRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Error(err)
		}
		json.NewEncoder(w).Encode(deliverResponse{Handle: []byte("handle-1")})
	}))
	defer srv.Close()

	d := NewWebhookDeliverer(srv.URL)
	video := medias.Video{Parser: medias.TypeYouTube, Original: "https://youtu.be/abc", URL: "https://cdn/v.mp4"}

	handle, err := d.Deliver(context.Background(), "user-1", video)
	if err != nil {
		t.Fatal(err)
	}
	if string(handle) != "handle-1" {
		t.Errorf("expected handle-1, got %s", handle)
	}
	if gotReq.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", gotReq.UserID)
	}
	if len(gotReq.Media) == 0 {
		t.Error("expected media payload")
	}
}

func TestWebhookDelivererDeliverCached(t *testing.T) {
	var gotReq deliverRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(deliverResponse{})
	}))
	defer srv.Close()

	d := NewWebhookDeliverer(srv.URL)
	if err := d.DeliverCached(context.Background(), "user-1", []byte("handle-1")); err != nil {
		t.Fatal(err)
	}
	if string(gotReq.Handle) != "handle-1" {
		t.Errorf("expected handle-1, got %s", gotReq.Handle)
	}
	if len(gotReq.Media) != 0 {
		t.Error("cached delivery must not resend the media payload")
	}
}

func TestWebhookDelivererUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewWebhookDeliverer(srv.URL)
	video := medias.Video{Parser: medias.TypeYouTube, Original: "https://youtu.be/abc", URL: "https://cdn/v.mp4"}

	if _, err := d.Deliver(context.Background(), "user-1", video); err == nil {
		t.Error("expected error for upstream failure")
	}
}

type fakeDeliverer struct {
	handle      []byte
	deliverErr  error
	delivers    int
	cachedSends int
	lastHandle  []byte
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ string, _ medias.Media) ([]byte, error) {
	f.delivers++
	return f.handle, f.deliverErr
}

func (f *fakeDeliverer) DeliverCached(_ context.Context, _ string, handle []byte) error {
	f.cachedSends++
	f.lastHandle = handle
	return nil
}

func newProcessFixture(t *testing.T, binarySrv *httptest.Server, d Deliverer) (*DeliveryWorker, *cache.MemoryCache, storage.Storage) {
	t.Helper()
	c, err := cache.NewMemoryCache(8)
	if err != nil {
		t.Fatal(err)
	}
	st := storage.NewMemoryStorage()
	var m *mirror.Mirror
	if binarySrv != nil {
		m = mirror.New(st, binarySrv.Client(), 1024)
		m.ValidateURL = nil
	}
	return NewDeliveryWorker(nil, c, nil, m, d), c, st
}

func TestProcessMissCachesHandleAndMimeType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "video bytes")
	}))
	defer srv.Close()

	d := &fakeDeliverer{handle: []byte("handle-1")}
	w, c, st := newProcessFixture(t, srv, d)

	video := medias.Video{
		Parser:   medias.TypeYouTube,
		Original: "https://youtu.be/abc",
		URL:      srv.URL,
		MimeType: "video/mp4",
	}
	raw, err := json.Marshal(video)
	if err != nil {
		t.Fatal(err)
	}
	delivery := &models.Delivery{UserID: "user-1", OriginalURL: video.Original, Media: raw}

	var logBuf bytes.Buffer
	if err := w.process(context.Background(), delivery, slog.Default(), &logBuf); err != nil {
		t.Fatal(err)
	}
	if d.delivers != 1 {
		t.Errorf("expected 1 upload, got %d", d.delivers)
	}

	entry, err := c.Get(context.Background(), video.Original)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("expected a cache entry after delivery")
	}
	if string(entry.Handle) != "handle-1" {
		t.Errorf("expected cached handle-1, got %s", entry.Handle)
	}
	if entry.MimeType != "video/mp4" {
		t.Errorf("expected cached mime video/mp4, got %q", entry.MimeType)
	}
	if entry.StorageKey != mirror.Key(video.Original) {
		t.Errorf("unexpected storage key %s", entry.StorageKey)
	}
	if exists, _ := st.Exists(entry.StorageKey); !exists {
		t.Error("mirrored binary missing from storage")
	}
}

func TestProcessHitResendsByHandle(t *testing.T) {
	d := &fakeDeliverer{deliverErr: errors.New("must not upload")}
	w, c, _ := newProcessFixture(t, nil, d)

	video := medias.Video{Parser: medias.TypeYouTube, Original: "https://youtu.be/abc", URL: "https://cdn/v.mp4"}
	raw, err := json.Marshal(video)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(context.Background(), video.Original, cache.Entry{Handle: []byte("handle-0")}); err != nil {
		t.Fatal(err)
	}
	delivery := &models.Delivery{UserID: "user-1", OriginalURL: video.Original, Media: raw}

	var logBuf bytes.Buffer
	if err := w.process(context.Background(), delivery, slog.Default(), &logBuf); err != nil {
		t.Fatal(err)
	}
	if d.delivers != 0 {
		t.Errorf("cache hit must not upload, got %d uploads", d.delivers)
	}
	if d.cachedSends != 1 {
		t.Errorf("expected 1 cached send, got %d", d.cachedSends)
	}
	if string(d.lastHandle) != "handle-0" {
		t.Errorf("expected handle-0, got %s", d.lastHandle)
	}
}

func TestDeliveryJobUniquenessSpansUserAndURL(t *testing.T) {
	typ := reflect.TypeOf(DeliveryJobArgs{})
	tags := map[string]string{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tags[f.Name] = f.Tag.Get("river")
	}

	// The row ID is fresh on every enqueue; including it in uniqueness
	// would make every job unique and duplicates would never collapse.
	if tags["DeliveryID"] == "unique" {
		t.Error("DeliveryID must not participate in job uniqueness")
	}
	if tags["UserID"] != "unique" {
		t.Error("UserID must participate in job uniqueness")
	}
	if tags["OriginalURL"] != "unique" {
		t.Error("OriginalURL must participate in job uniqueness")
	}
}

func TestDeliveryIDFromJob(t *testing.T) {
	raw, err := json.Marshal(DeliveryJobArgs{DeliveryID: 42, UserID: "user-1", OriginalURL: "https://youtu.be/abc"})
	if err != nil {
		t.Fatal(err)
	}

	id, err := deliveryIDFromJob(&rivertype.JobRow{EncodedArgs: raw})
	if err != nil {
		t.Fatal(err)
	}
	if id != 42 {
		t.Errorf("expected delivery 42, got %d", id)
	}

	if _, err := deliveryIDFromJob(&rivertype.JobRow{EncodedArgs: []byte("not json")}); err == nil {
		t.Error("expected error for undecodable args")
	}
}
