package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/streamfs/pkg/source/memory"
)

func newFilesRouter(store *memory.Store, cfg FilesConfig) http.Handler {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1024
	}
	if cfg.IdleWriteTimeout == 0 {
		cfg.IdleWriteTimeout = time.Second
	}

	h := NewFilesHandler(store, cfg, nil)
	r := chi.NewRouter()
	r.Route("/files", func(r chi.Router) {
		r.Get("/*", h.Download)
		r.Head("/*", h.Head)
		r.Post("/*", h.Upload)
		r.Delete("/*", h.Delete)
	})
	return r
}

func seededRouter(t *testing.T, key string, data []byte) http.Handler {
	t.Helper()

	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	store.Put(key, data, "application/octet-stream")
	return newFilesRouter(store, FilesConfig{})
}

func doRequest(t *testing.T, router http.Handler, method, target string, headers map[string]string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func testPayload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestDownload_Full(t *testing.T) {
	data := testPayload(5000)
	router := seededRouter(t, "videos/clip.bin", data)

	rec := doRequest(t, router, http.MethodGet, "/files/videos/clip.bin", nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "5000" {
		t.Errorf("Content-Length = %q, want 5000", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("body does not match stored resource")
	}
}

func TestDownload_Range(t *testing.T) {
	data := testPayload(5000)
	router := seededRouter(t, "clip.bin", data)

	rec := doRequest(t, router, http.MethodGet, "/files/clip.bin",
		map[string]string{"Range": "bytes=1000-2999"}, nil)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 1000-2999/5000" {
		t.Errorf("Content-Range = %q, want bytes 1000-2999/5000", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "2000" {
		t.Errorf("Content-Length = %q, want 2000", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), data[1000:3000]) {
		t.Error("body does not match requested range")
	}
}

func TestDownload_SingleByteRange(t *testing.T) {
	router := seededRouter(t, "clip.bin", testPayload(100))

	rec := doRequest(t, router, http.MethodGet, "/files/clip.bin",
		map[string]string{"Range": "bytes=0-0"}, nil)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if rec.Body.Len() != 1 {
		t.Errorf("body length = %d, want 1", rec.Body.Len())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-0/100" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestDownload_SuffixRange(t *testing.T) {
	data := testPayload(100)
	router := seededRouter(t, "clip.bin", data)

	rec := doRequest(t, router, http.MethodGet, "/files/clip.bin",
		map[string]string{"Range": "bytes=-10"}, nil)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 90-99/100" {
		t.Errorf("Content-Range = %q, want bytes 90-99/100", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), data[90:]) {
		t.Error("body does not match last 10 bytes")
	}
}

func TestDownload_EndClamped(t *testing.T) {
	data := testPayload(100)
	router := seededRouter(t, "clip.bin", data)

	rec := doRequest(t, router, http.MethodGet, "/files/clip.bin",
		map[string]string{"Range": "bytes=50-9999"}, nil)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 50-99/100" {
		t.Errorf("Content-Range = %q, want bytes 50-99/100", got)
	}
}

func TestDownload_UnsatisfiableRange(t *testing.T) {
	router := seededRouter(t, "clip.bin", testPayload(100))

	rec := doRequest(t, router, http.MethodGet, "/files/clip.bin",
		map[string]string{"Range": "bytes=100-"}, nil)

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */100" {
		t.Errorf("Content-Range = %q, want bytes */100", got)
	}
}

func TestDownload_InvalidRange(t *testing.T) {
	router := seededRouter(t, "clip.bin", testPayload(100))

	for _, header := range []string{
		"bytes=abc",
		"bytes=5-2",
		"items=0-10",
		"bytes=0-10,20-30",
	} {
		rec := doRequest(t, router, http.MethodGet, "/files/clip.bin",
			map[string]string{"Range": header}, nil)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Range %q: status = %d, want 400", header, rec.Code)
		}
	}
}

func TestDownload_NotFound(t *testing.T) {
	router := seededRouter(t, "clip.bin", testPayload(100))

	rec := doRequest(t, router, http.MethodGet, "/files/missing.bin", nil, nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("response status = %q, want error", resp.Status)
	}
}

func TestDownload_EmptyResource(t *testing.T) {
	router := seededRouter(t, "empty.bin", nil)

	rec := doRequest(t, router, http.MethodGet, "/files/empty.bin", nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "0" {
		t.Errorf("Content-Length = %q, want 0", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body length = %d, want 0", rec.Body.Len())
	}
}

func TestHead(t *testing.T) {
	router := seededRouter(t, "clip.bin", testPayload(5000))

	rec := doRequest(t, router, http.MethodHead, "/files/clip.bin", nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "5000" {
		t.Errorf("Content-Length = %q, want 5000", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body length = %d, want 0", rec.Body.Len())
	}
}

func TestHead_Range(t *testing.T) {
	router := seededRouter(t, "clip.bin", testPayload(5000))

	rec := doRequest(t, router, http.MethodHead, "/files/clip.bin",
		map[string]string{"Range": "bytes=0-999"}, nil)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-999/5000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q, want 1000", got)
	}
}

func TestUpload_RoundTrip(t *testing.T) {
	store := memory.New()
	defer store.Close()
	router := newFilesRouter(store, FilesConfig{})

	data := testPayload(3000)
	rec := doRequest(t, router, http.MethodPost, "/files/uploads/new.bin", nil, bytes.NewReader(data))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("response status = %q, want ok", resp.Status)
	}
	data2, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T, want object", resp.Data)
	}
	if data2["bytes_written"] != float64(3000) {
		t.Errorf("bytes_written = %v, want 3000", data2["bytes_written"])
	}

	rec = doRequest(t, router, http.MethodGet, "/files/uploads/new.bin", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET after upload: status = %d, want 200", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("downloaded body does not match uploaded data")
	}
}

func TestUpload_TooLarge(t *testing.T) {
	store := memory.New()
	defer store.Close()
	router := newFilesRouter(store, FilesConfig{MaxUploadSize: 1000})

	rec := doRequest(t, router, http.MethodPost, "/files/big.bin", nil,
		bytes.NewReader(testPayload(2000)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	router := seededRouter(t, "clip.bin", testPayload(100))

	rec := doRequest(t, router, http.MethodDelete, "/files/clip.bin", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, router, http.MethodDelete, "/files/clip.bin", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/files/clip.bin", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET after delete: status = %d, want 404", rec.Code)
	}
}
