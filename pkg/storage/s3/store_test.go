package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/devdata-fetch/pkg/storage/core"
)

// mockRoundTripper provides a tiny fake S3 subset sufficient to exercise the
// adapter without network access. Requests use path-style addressing.
type mockRoundTripper struct {
	mu    sync.Mutex
	state map[string][]byte
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range m.state {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(m.state[k]))
		}
		b.WriteString("</ListBucketResult>")
		return xmlResponse(200, b.String()), nil
	}

	switch req.Method {
	case http.MethodHead:
		if body, ok := m.state[key]; ok {
			return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{
				"Content-Length": {strconv.Itoa(len(body))},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			}}, nil
		}
		return &http.Response{StatusCode: 404, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	case http.MethodPut:
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
		}
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		m.state[key] = body
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {`"etag"`}}}, nil
	case http.MethodGet:
		if body, ok := m.state[key]; ok {
			return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
				"Content-Length": {strconv.Itoa(len(body))},
			}}, nil
		}
		return xmlResponse(404, "<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>"), nil
	}
	return &http.Response{StatusCode: 501, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}},
	}
}

// decodeChunked unwraps a single-chunk aws-chunked upload body.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil {
		return nil, false
	}
	if n == 0 {
		return []byte{}, true
	}
	if int64(len(parts[1])) != n || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newMockStore(t *testing.T, prefix string) (*Store, *mockRoundTripper) {
	t.Helper()
	rt := &mockRoundTripper{state: make(map[string][]byte)}
	s, err := New(context.Background(), Config{
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		Prefix:          prefix,
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, rt
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("New() without bucket should fail")
	}
}

func TestStore_MockedBasicFlow(t *testing.T) {
	ctx := context.Background()
	store, rt := newMockStore(t, "runs/2024-05-01")

	if store.Driver() != core.DriverS3 {
		t.Fatalf("Driver() = %s", store.Driver())
	}

	if ok, err := store.Exists(ctx, "KAZ/KAZ.json"); err != nil || ok {
		t.Fatalf("Exists() before write = %v, %v", ok, err)
	}
	if err := store.Write(ctx, "KAZ/KAZ.json", []byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, ok := rt.state["runs/2024-05-01/KAZ/KAZ.json"]; !ok {
		t.Errorf("object not stored under prefix, state keys: %v", keysOf(rt.state))
	}
	if ok, err := store.Exists(ctx, "KAZ/KAZ.json"); err != nil || !ok {
		t.Fatalf("Exists() after write = %v, %v", ok, err)
	}

	b, err := store.Read(ctx, "KAZ/KAZ.json")
	if err != nil || string(b) != "hello" {
		t.Fatalf("Read() = %q, %v", b, err)
	}
}

func TestStore_ReadMissing(t *testing.T) {
	store, _ := newMockStore(t, "")
	_, err := store.Read(context.Background(), "missing.json")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

func TestStore_EnsureDirMarker(t *testing.T) {
	ctx := context.Background()
	store, rt := newMockStore(t, "")

	created, err := store.EnsureDir(ctx, "KAZ")
	if err != nil || !created {
		t.Fatalf("EnsureDir() = %v, %v; want created", created, err)
	}
	if _, ok := rt.state["KAZ/"]; !ok {
		t.Error("directory marker not written")
	}
	created, err = store.EnsureDir(ctx, "KAZ")
	if err != nil || created {
		t.Fatalf("EnsureDir() again = %v, %v; want exists", created, err)
	}
}

func TestStore_CreateAndAppend(t *testing.T) {
	ctx := context.Background()
	store, _ := newMockStore(t, "")

	w, err := store.Append(ctx, "Data/UNSTAT-ALL-DATA.tsv")
	if err != nil {
		t.Fatalf("Append() on missing object error = %v", err)
	}
	io.WriteString(w, "row1\n")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	w, _ = store.Append(ctx, "Data/UNSTAT-ALL-DATA.tsv")
	io.WriteString(w, "row2\n")
	w.Close()

	b, _ := store.Read(ctx, "Data/UNSTAT-ALL-DATA.tsv")
	if string(b) != "row1\nrow2\n" {
		t.Errorf("content = %q", b)
	}

	w, _ = store.Create(ctx, "Data/UNSTAT-ALL-DATA.tsv")
	io.WriteString(w, "fresh\n")
	w.Close()
	b, _ = store.Read(ctx, "Data/UNSTAT-ALL-DATA.tsv")
	if string(b) != "fresh\n" {
		t.Errorf("content after Create = %q", b)
	}
}

func TestStore_ListSkipsMarkersAndPrefix(t *testing.T) {
	ctx := context.Background()
	store, _ := newMockStore(t, "runs/1")

	_, _ = store.EnsureDir(ctx, "KAZ")
	_ = store.Write(ctx, "KAZ/KAZ.json", []byte("{}"))
	_ = store.Write(ctx, "KAZ/00057409.json", []byte("{}"))

	got, err := store.List(ctx, "KAZ/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"KAZ/00057409.json", "KAZ/KAZ.json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func keysOf(m map[string][]byte) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
