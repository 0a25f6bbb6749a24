// prometheus.go - Prometheus text exporter
package metrics

import (
	"fmt"
	"net/http"
	"strings"
)

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(m.Prometheus()))
	}
}

// Prometheus renders the current snapshot in the text exposition format.
func (m *Metrics) Prometheus() string {
	s := m.Snapshot()
	var out strings.Builder

	write := func(name, typ, help string, value any) {
		out.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
		out.WriteString(fmt.Sprintf("# TYPE %s %s\n", name, typ))
		out.WriteString(fmt.Sprintf("%s %v\n\n", name, value))
	}

	out.WriteString("# HELP gallery_info Application version info\n")
	out.WriteString("# TYPE gallery_info gauge\n")
	out.WriteString(fmt.Sprintf("gallery_info{version=\"%s\"} 1\n\n", prometheusLabel(m.version)))

	write("gallery_requests_total", "counter", "Total number of HTTP requests", s.RequestsTotal)
	out.WriteString("# HELP gallery_request_errors_total HTTP responses with an error status\n")
	out.WriteString("# TYPE gallery_request_errors_total counter\n")
	out.WriteString(fmt.Sprintf("gallery_request_errors_total{class=\"4xx\"} %d\n", s.RequestErrors4xx))
	out.WriteString(fmt.Sprintf("gallery_request_errors_total{class=\"5xx\"} %d\n\n", s.RequestErrors5xx))

	write("gallery_uploads_total", "counter", "Total number of image uploads", s.UploadsTotal)
	write("gallery_upload_bytes_total", "counter", "Bytes accepted by image uploads", s.UploadBytesTotal)
	write("gallery_upload_errors_total", "counter", "Failed image uploads", s.UploadErrorsTotal)
	write("gallery_upload_avg_duration_ms", "gauge", "Mean upload duration in milliseconds", fmt.Sprintf("%.2f", s.UploadAvgDurationMs))
	write("gallery_updates_total", "counter", "Caption or folder edits", s.UpdatesTotal)
	write("gallery_deletes_total", "counter", "Deleted uploads", s.DeletesTotal)
	write("gallery_delete_errors_total", "counter", "Deletes that failed", s.DeleteErrorsTotal)

	write("gallery_login_attempts_total", "counter", "Total number of login attempts", s.LoginAttemptsTotal)
	write("gallery_login_success_total", "counter", "Total number of successful logins", s.LoginSuccessTotal)
	write("gallery_login_failures_total", "counter", "Total number of failed logins", s.LoginFailuresTotal)
	write("gallery_active_sessions", "gauge", "Sessions that have not expired", s.ActiveSessionsTotal)
	write("gallery_sessions_swept_total", "counter", "Expired sessions removed by the sweeper", s.SessionsSweptTotal)

	write("gallery_uptime_seconds", "counter", "Application uptime in seconds", fmt.Sprintf("%.0f", s.UptimeSeconds))
	return out.String()
}

// Helper function to format label safely for Prometheus
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}
