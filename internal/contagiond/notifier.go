package contagiond

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/logger"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

var (
	ErrInvalidURL       = errors.New("invalid callback URL")
	ErrMetadataEndpoint = errors.New("callback URL targets a cloud metadata endpoint")
)

// NotificationPayload is the JSON body posted to a sweep's callback URL.
type NotificationPayload struct {
	SweepID         string             `json:"sweep_id"`
	Status          models.RunStatus   `json:"status"`
	CreatedAtUnixMs int64              `json:"created_at_unix_ms"`
	StartedAtUnixMs int64              `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64              `json:"ended_at_unix_ms,omitempty"`
	Error           string             `json:"error,omitempty"`
	Curve           map[string]float64 `json:"curve,omitempty"`
	Timestamp       int64              `json:"timestamp"` // when the notification was sent
}

// Notifier posts terminal sweep states to callback URLs.
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewNotifier creates a notifier with three retries and exponential backoff.
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		baseDelay:  1 * time.Second,
	}
}

// ValidateCallbackURL accepts http and https URLs with a host, rejecting
// wildcard and cloud metadata addresses.
func ValidateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if strings.EqualFold(host, "metadata.google.internal") || host == "169.254.169.254" {
		return ErrMetadataEndpoint
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return fmt.Errorf("%w: unspecified address %s", ErrInvalidURL, host)
	}
	return nil
}

// Notify posts the record asynchronously. It returns immediately.
func (n *Notifier) Notify(callbackURL, callbackSecret string, rec SweepRecord) {
	if callbackURL == "" {
		return
	}
	finalURL := strings.ReplaceAll(callbackURL, "{sweep_id}", rec.Sweep.ID)
	go n.send(finalURL, callbackSecret, newPayload(rec))
}

func newPayload(rec SweepRecord) NotificationPayload {
	p := NotificationPayload{
		SweepID:         rec.Sweep.ID,
		Status:          rec.Sweep.Status,
		CreatedAtUnixMs: unixMs(rec.Sweep.CreatedAt),
		StartedAtUnixMs: unixMs(rec.Sweep.StartedAt),
		EndedAtUnixMs:   unixMs(rec.Sweep.EndedAt),
		Error:           rec.Sweep.Error,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}
	if rec.Result != nil {
		p.Curve = rec.Result.Curve()
	}
	return p
}

func (n *Notifier) send(callbackURL, callbackSecret string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload", "sweep_id", payload.SweepID, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.baseDelay * time.Duration(1<<uint(attempt-1))
			logger.Debug("retrying notification", "sweep_id", payload.SweepID, "attempt", attempt, "delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "contagion-core/1.0")
		if callbackSecret != "" {
			req.Header.Set("X-Contagion-Callback-Secret", callbackSecret)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			logger.Warn("notification attempt failed", "sweep_id", payload.SweepID, "attempt", attempt+1, "error", err)
			continue
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("notification sent", "sweep_id", payload.SweepID, "status", payload.Status, "status_code", resp.StatusCode)
			return
		}
		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status", "sweep_id", payload.SweepID, "status_code", resp.StatusCode, "attempt", attempt+1)
	}

	logger.Error("failed to send notification after retries",
		"sweep_id", payload.SweepID,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
