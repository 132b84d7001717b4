package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fruitsalade/docdesk/pkg/retry"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{BaseURL: ts.URL})
	return c, ts
}

func TestListFiles_FiltersPlaceholders(t *testing.T) {
	var gotQuery, gotPath, gotCache string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("folder")
		gotCache = r.Header.Get("Cache-Control")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"name": "a.txt", "type": "txt", "size": 10, "lastModified": "2024-05-01T10:00:00Z", "folder": false},
			{"name": "b/.placeholder", "type": "placeholder", "size": 0, "lastModified": nil, "folder": false},
			{"name": ".placeholder", "type": "unknown", "size": 0, "lastModified": nil, "folder": false},
			{"name": "c.txt", "type": "txt", "size": 3, "lastModified": nil, "folder": false},
			{"name": "sub/", "type": "folder", "size": 0, "lastModified": nil, "folder": true},
		})
	}))
	defer ts.Close()

	entries, err := c.ListFiles(context.Background(), 7, "Reports/2024", ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/files/list/7" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "Reports/2024" {
		t.Errorf("folder = %q", gotQuery)
	}
	if gotCache != "no-cache" {
		t.Errorf("Cache-Control = %q", gotCache)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != "a.txt,c.txt,sub/" {
		t.Errorf("names = %v", names)
	}
	if entries[0].LastModified == nil || entries[0].LastModified.Year() != 2024 {
		t.Errorf("lastModified not parsed: %v", entries[0].LastModified)
	}
	if !entries[2].IsFolder {
		t.Error("expected sub/ to be a folder")
	}
}

func TestListFiles_RootAndForce(t *testing.T) {
	var query map[string][]string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte("[]"))
	}))
	defer ts.Close()

	if _, err := c.ListFiles(context.Background(), 1, "", ListOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(query) != 0 {
		t.Errorf("root listing should send no query, got %v", query)
	}

	if _, err := c.ListFiles(context.Background(), 1, "", ListOptions{Force: true}); err != nil {
		t.Fatal(err)
	}
	if _, ok := query["t"]; !ok {
		t.Error("forced listing should send a cache-busting t parameter")
	}
	if _, ok := query["folder"]; ok {
		t.Error("root listing should not send folder")
	}
}

func TestListFiles_ServerError(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := c.ListFiles(context.Background(), 1, "", ListOptions{})
	se, ok := AsServerError(err)
	if !ok {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if se.Status != 500 || se.Message != "storage unavailable" {
		t.Errorf("unexpected server error: %+v", se)
	}
}

func TestListFiles_NoRetryByDefault(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c.ListFiles(context.Background(), 1, "", ListOptions{})
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", attempts.Load())
	}
}

func TestListFiles_RetryWhenConfigured(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("[]"))
	}))
	defer ts.Close()

	c := New(Config{
		BaseURL:     ts.URL,
		RetryConfig: retry.Config{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	})
	if _, err := c.ListFiles(context.Background(), 1, "", ListOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestListFiles_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second})
	_, err := c.ListFiles(context.Background(), 1, "", ListOptions{})
	if !IsNetworkError(err) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
}

func TestUpload_MultipartAndProgress(t *testing.T) {
	var gotPath, gotName string
	var gotBody []byte
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotName = hdr.Filename
		gotBody, _ = io.ReadAll(f)
		w.Write([]byte("File uploaded"))
	}))
	defer ts.Close()

	content := strings.Repeat("x", 1000)
	var reports []int
	err := c.Upload(context.Background(), 3, "Reports", "data.bin", strings.NewReader(content), 1000, func(p int) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/api/files/upload/3/Reports/data.bin" {
		t.Errorf("path = %s", gotPath)
	}
	if gotName != "data.bin" || string(gotBody) != content {
		t.Errorf("server got %q with %d bytes", gotName, len(gotBody))
	}
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Fatalf("progress should end at 100, got %v", reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] <= reports[i-1] {
			t.Errorf("progress not increasing: %v", reports)
			break
		}
	}
}

func TestUpload_Failure(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Upload failed"))
	}))
	defer ts.Close()

	var last int
	err := c.Upload(context.Background(), 3, "", "a.txt", strings.NewReader("abc"), 3, func(p int) { last = p })
	se, ok := AsServerError(err)
	if !ok || se.Message != "Upload failed" {
		t.Fatalf("expected ServerError with message, got %v", err)
	}
	if last > 100 {
		t.Errorf("progress out of range: %d", last)
	}
}

func TestCreateFolder_UploadsPlaceholder(t *testing.T) {
	var calls atomic.Int32
	var gotPath string
	var gotSize int64 = -1
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotPath = r.URL.Path
		f, hdr, err := r.FormFile("file")
		if err == nil {
			gotSize = hdr.Size
			f.Close()
		}
	}))
	defer ts.Close()

	if err := c.CreateFolder(context.Background(), 5, "", "NewFolder"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if gotPath != "/api/files/upload/5/NewFolder/.placeholder" {
		t.Errorf("path = %s", gotPath)
	}
	if gotSize != 0 {
		t.Errorf("placeholder size = %d, want 0", gotSize)
	}
}

func TestDelete_Endpoints(t *testing.T) {
	var got []string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
	}))
	defer ts.Close()

	ctx := context.Background()
	if err := c.DeleteFile(ctx, 2, "Reports/a b.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteFolder(ctx, 2, "Reports/2024"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"DELETE /api/files/delete/2/Reports/a b.pdf",
		"DELETE /api/files/delete-folder/2/Reports/2024",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestDownload_Streams(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/student/9/certificate" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer ts.Close()

	rc, _, err := c.Certificate(context.Background(), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF-1.4" {
		t.Errorf("body = %q", data)
	}

	if _, _, err := c.Transcript(context.Background(), 9); err == nil {
		t.Error("expected error for missing transcript")
	}
}

func TestAuthHeader(t *testing.T) {
	var auth string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte("[]"))
	}))
	defer ts.Close()

	c.SetAuthToken("tok")
	c.ListFiles(context.Background(), 1, "", ListOptions{})
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}

	c.SetAuthToken("")
	c.ListFiles(context.Background(), 1, "", ListOptions{})
	if auth != "" {
		t.Errorf("Authorization should be empty, got %q", auth)
	}
}

func TestReadMessage(t *testing.T) {
	tests := []struct {
		body, want string
	}{
		{"Invalid credentials\n", "Invalid credentials"},
		{`{"message":"Bad folder","error":"Bad Request"}`, "Bad folder"},
		{`{"error":"Not Found"}`, "Not Found"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := readMessage(strings.NewReader(tt.body)); got != tt.want {
			t.Errorf("readMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
