package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTransport_SetsRequestID(t *testing.T) {
	var gotID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	defer Replace(zap.NewNop())

	c := &http.Client{Transport: &Transport{}}
	resp, err := c.Get(ts.URL + "/api/files/list/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotID == "" {
		t.Fatal("expected X-Request-ID header")
	}
	completed := logs.FilterMessage("request completed").All()
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion log, got %d", len(completed))
	}
	fields := completed[0].ContextMap()
	if fields["request_id"] != gotID {
		t.Errorf("logged request_id %v, want %s", fields["request_id"], gotID)
	}
	if fields["status"] != int64(http.StatusNoContent) {
		t.Errorf("logged status %v", fields["status"])
	}
}

func TestTransport_KeepsCallerRequestID(t *testing.T) {
	var gotID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
	}))
	defer ts.Close()

	req, _ := http.NewRequest("GET", ts.URL, nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	resp, err := (&http.Client{Transport: &Transport{}}).Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if gotID != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", gotID)
	}
}

type captureTransport struct {
	ctx context.Context
	req *http.Request
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.ctx = req.Context()
	c.req = req
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestTransport_PutsRequestIDOnContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	defer Replace(zap.NewNop())

	base := &captureTransport{}
	req, _ := http.NewRequest("GET", "http://docs.invalid/api/user/1", nil)
	resp, err := (&Transport{Base: base}).RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	id := base.req.Header.Get("X-Request-ID")
	if id == "" {
		t.Fatal("expected X-Request-ID header")
	}
	if got := GetRequestID(base.ctx); got != id {
		t.Errorf("context request id = %q, want %q", got, id)
	}
	if req.Header.Get("X-Request-ID") != "" {
		t.Error("caller's request was modified")
	}

	WithContext(base.ctx).Info("downstream")
	entries := logs.FilterMessage("downstream").All()
	if len(entries) != 1 || entries[0].ContextMap()["request_id"] != id {
		t.Errorf("downstream log missing request_id: %+v", entries)
	}
	completed := logs.FilterMessage("request completed").All()
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion log, got %d", len(completed))
	}
	if n := len(completed[0].Context); n != 5 {
		t.Errorf("completion log has %d fields, want 5 (request_id once)", n)
	}
}

func TestTransport_UsesContextRequestID(t *testing.T) {
	base := &captureTransport{}
	ctx := WithRequestID(context.Background(), "from-ctx")
	req, _ := http.NewRequestWithContext(ctx, "GET", "http://docs.invalid/", nil)
	resp, err := (&Transport{Base: base}).RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := base.req.Header.Get("X-Request-ID"); got != "from-ctx" {
		t.Errorf("X-Request-ID = %q, want from-ctx", got)
	}
	if got := GetRequestID(base.ctx); got != "from-ctx" {
		t.Errorf("context request id = %q", got)
	}
	if GetRequestID(context.Background()) != "" {
		t.Error("expected empty request id")
	}
}
