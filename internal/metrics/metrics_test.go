package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordUpload(t *testing.T) {
	before := testutil.ToFloat64(uploadsTotal.WithLabelValues("failure"))
	RecordUpload(false)
	if got := testutil.ToFloat64(uploadsTotal.WithLabelValues("failure")); got != before+1 {
		t.Errorf("failure uploads = %v, want %v", got, before+1)
	}
}

func TestRecordDelete(t *testing.T) {
	before := testutil.ToFloat64(deletesTotal.WithLabelValues("folder", "success"))
	RecordDelete(true, true)
	if got := testutil.ToFloat64(deletesTotal.WithLabelValues("folder", "success")); got != before+1 {
		t.Errorf("folder deletes = %v, want %v", got, before+1)
	}
}

func TestObserveRequest_NoResponse(t *testing.T) {
	before := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "list", "error"))
	ObserveRequest("GET", "list", 0, 10*time.Millisecond)
	if got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "list", "error")); got != before+1 {
		t.Errorf("error requests = %v, want %v", got, before+1)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetListingSize(3)
	AddBytesUploaded(1000)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"docdesk_listing_entries 3", "docdesk_bytes_uploaded_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/api/files/list/7", "files/list"},
		{"/api/files/upload/7/Reports/a.pdf", "files/upload"},
		{"/api/files/delete-folder/7/Reports", "files/delete-folder"},
		{"/api/user/Login", "user/login"},
		{"/api/user/7", "user"},
		{"/api/student/7/certificate", "student/certificate"},
		{"/", "other"},
	}
	for _, tt := range tests {
		if got := Endpoint(tt.path); got != tt.want {
			t.Errorf("Endpoint(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestTransportRecords(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	before := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "files/download", "404"))
	resp, err := (&http.Client{Transport: &Transport{}}).Get(ts.URL + "/api/files/download/1/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "files/download", "404")); got != before+1 {
		t.Errorf("requests = %v, want %v", got, before+1)
	}
}
