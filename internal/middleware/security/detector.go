package security

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"coinly/internal/log"
)

const (
	maxURLLength     = 2048
	maxForwardedHops = 5
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}

	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
	}

	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

// DetectorMetrics counts requests seen and flagged by a Detector.
type DetectorMetrics struct {
	TotalRequests      int64
	SuspiciousRequests int64
}

// Detector flags requests that look like scans or injection attempts.
// Flagged requests are logged and counted, never blocked.
type Detector struct {
	logger   *log.Logger
	clientIP func(*http.Request) string
	metrics  DetectorMetrics
}

func NewDetector(logger *log.Logger, clientIP func(*http.Request) string) *Detector {
	return &Detector{
		logger:   logger.WithComponent(log.ComponentSecurity),
		clientIP: clientIP,
	}
}

// DetectSuspiciousRequest reports whether r matches a known attack pattern
// and names the first rule it tripped.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) (string, bool) {
	if containsAny(strings.ToLower(r.URL.Path), suspiciousPatterns) {
		return "path", true
	}

	query := r.URL.RawQuery
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	if containsAny(strings.ToLower(query), suspiciousPatterns) {
		return "query", true
	}

	if containsAny(strings.ToLower(r.Header.Get("User-Agent")), scannerAgents) {
		return "user_agent", true
	}

	for _, m := range unusualMethods {
		if r.Method == m {
			return "method", true
		}
	}

	if len(r.URL.String()) > maxURLLength {
		return "url_length", true
	}

	if xff := r.Header.Get("X-Forwarded-For"); strings.Count(xff, ",") > maxForwardedHops {
		return "forwarded_hops", true
	}
	return "", false
}

// Middleware runs detection on every request before passing it on.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&d.metrics.TotalRequests, 1)

		if rule, ok := d.DetectSuspiciousRequest(r); ok {
			atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)

			clientIP := ""
			if d.clientIP != nil {
				clientIP = d.clientIP(r)
			}
			d.logger.Warn("suspicious request",
				"rule", rule,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent(),
			)
		}

		next.ServeHTTP(w, r)
	})
}

func (d *Detector) GetMetrics() DetectorMetrics {
	return DetectorMetrics{
		TotalRequests:      atomic.LoadInt64(&d.metrics.TotalRequests),
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
	}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
