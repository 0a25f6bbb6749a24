// Package metrics keeps in-process counters for the gallery and renders them
// in the Prometheus text format.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	mu      sync.RWMutex
	started time.Time
	version string

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration
	updatesTotal        int64

	// Delete metrics
	deletesTotal      int64
	deleteErrorsTotal int64

	// Auth metrics
	loginAttemptsTotal  int64
	loginSuccessTotal   int64
	loginFailuresTotal  int64
	activeSessionsTotal int64
	sessionsSweptTotal  int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

// New starts the uptime clock. version is reported by gallery_info.
func New(version string) *Metrics {
	if version == "" {
		version = "dev"
	}
	return &Metrics{started: time.Now(), version: version}
}

// RecordUpload records a successful upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

func (m *Metrics) RecordUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatesTotal++
}

// RecordDelete records a delete attempt that reached the object store.
func (m *Metrics) RecordDelete(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.deletesTotal++
	} else {
		m.deleteErrorsTotal++
	}
}

// RecordLoginAttempt records a login attempt
func (m *Metrics) RecordLoginAttempt(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginAttemptsTotal++
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailuresTotal++
	}
}

// SetActiveSessions sets the current active sessions count
func (m *Metrics) SetActiveSessions(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeSessionsTotal = count
}

func (m *Metrics) RecordSessionsSwept(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsSweptTotal += n
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		UploadsTotal:        m.uploadsTotal,
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadErrorsTotal:   m.uploadErrorsTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		UpdatesTotal:        m.updatesTotal,
		DeletesTotal:        m.deletesTotal,
		DeleteErrorsTotal:   m.deleteErrorsTotal,
		LoginAttemptsTotal:  m.loginAttemptsTotal,
		LoginSuccessTotal:   m.loginSuccessTotal,
		LoginFailuresTotal:  m.loginFailuresTotal,
		ActiveSessionsTotal: m.activeSessionsTotal,
		SessionsSweptTotal:  m.sessionsSweptTotal,
		RequestsTotal:       m.requestsTotal,
		RequestErrors5xx:    m.requestErrors5xx,
		RequestErrors4xx:    m.requestErrors4xx,
		UptimeSeconds:       time.Since(m.started).Seconds(),
	}
}

// Snapshot represents a point-in-time snapshot of metrics
type Snapshot struct {
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`
	UpdatesTotal        int64   `json:"updates_total"`

	DeletesTotal      int64 `json:"deletes_total"`
	DeleteErrorsTotal int64 `json:"delete_errors_total"`

	LoginAttemptsTotal  int64 `json:"login_attempts_total"`
	LoginSuccessTotal   int64 `json:"login_success_total"`
	LoginFailuresTotal  int64 `json:"login_failures_total"`
	ActiveSessionsTotal int64 `json:"active_sessions_total"`
	SessionsSweptTotal  int64 `json:"sessions_swept_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`

	UptimeSeconds float64 `json:"uptime_seconds"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
