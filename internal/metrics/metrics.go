// Package metrics provides Prometheus metrics for the docdesk client.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API request metrics
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdesk_api_requests_total",
			Help: "Total number of API requests issued",
		},
		[]string{"method", "endpoint", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docdesk_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Transfer metrics
	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docdesk_bytes_uploaded_total",
			Help: "Total bytes sent in upload bodies",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdesk_uploads_total",
			Help: "Total number of finished uploads",
		},
		[]string{"status"},
	)

	deletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdesk_deletes_total",
			Help: "Total number of delete calls",
		},
		[]string{"kind", "status"},
	)

	listingSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docdesk_listing_entries",
			Help: "Number of visible entries in the last folder listing",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records a finished API request. status 0 means the
// request never got a response.
func ObserveRequest(method, endpoint string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	apiRequestsTotal.WithLabelValues(method, endpoint, label).Inc()
	apiRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// AddBytesUploaded counts bytes written to upload bodies.
func AddBytesUploaded(n int64) {
	bytesUploaded.Add(float64(n))
}

// RecordUpload records a finished upload.
func RecordUpload(ok bool) {
	uploadsTotal.WithLabelValues(result(ok)).Inc()
}

// RecordDelete records a delete call for a file or a folder.
func RecordDelete(folder, ok bool) {
	kind := "file"
	if folder {
		kind = "folder"
	}
	deletesTotal.WithLabelValues(kind, result(ok)).Inc()
}

// SetListingSize sets the size of the last listing.
func SetListingSize(n int) {
	listingSize.Set(float64(n))
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Transport records every API request issued through it.
type Transport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	ObserveRequest(req.Method, Endpoint(req.URL.Path), status, time.Since(start))
	return resp, err
}

// Endpoint reduces a request path to a low-cardinality label, dropping
// user ids and file paths: /api/files/list/7 -> files/list,
// /api/student/7/transcript -> student/transcript.
func Endpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 0 && parts[0] == "api" {
		parts = parts[1:]
	}
	if len(parts) == 0 || parts[0] == "" {
		return "other"
	}

	label := parts[0]
	switch {
	case len(parts) > 1 && !isNumeric(parts[1]):
		label += "/" + strings.ToLower(parts[1])
	case len(parts) > 2 && isNumeric(parts[1]):
		label += "/" + strings.ToLower(parts[2])
	}
	return label
}

func isNumeric(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
