// Package media downloads provider-hosted attachments. The download is
// two-phase: resolve the media ID to a short-lived URL, then fetch the
// bytes. Both phases retry on transient failures.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/models"
	"github.com/expensabot/expensa/internal/retry"
)

// maxMediaBytes caps a single attachment download.
const maxMediaBytes = 25 << 20

// httpStatusError marks an HTTP failure so the transient predicate can
// classify it by status code.
type httpStatusError struct {
	status int
	phase  string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.phase, e.status)
}

// IsTransient reports whether an error is worth retrying: network-level
// failures, 429, and 5xx. Other HTTP errors fail immediately.
func IsTransient(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return true
}

type Fetcher struct {
	baseURL    string
	token      string
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		baseURL: cfg.WhatsApp.GraphBaseURL,
		token:   cfg.WhatsApp.Token,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Media.TimeoutSec) * time.Second,
		},
		policy: retry.Policy{
			Attempts:  cfg.Media.MaxAttempts,
			BaseDelay: time.Duration(cfg.Media.BaseBackoffMs) * time.Millisecond,
		},
		logger: logger,
	}
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Fetch resolves and downloads one attachment.
func (f *Fetcher) Fetch(ctx context.Context, mediaID string) (*models.MediaContent, error) {
	var info mediaInfo
	err := retry.Do(ctx, f.policy, IsTransient, func() error {
		return f.resolve(ctx, mediaID, &info)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media %s: %w", mediaID, err)
	}

	var data []byte
	err = retry.Do(ctx, f.policy, IsTransient, func() error {
		var downloadErr error
		data, downloadErr = f.download(ctx, info.URL)
		return downloadErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download media %s: %w", mediaID, err)
	}

	f.logger.Debug("Media fetched",
		zap.String("mediaID", mediaID),
		zap.String("mimeType", info.MimeType),
		zap.Int("bytes", len(data)))

	return &models.MediaContent{Data: data, MimeType: info.MimeType}, nil
}

func (f *Fetcher) resolve(ctx context.Context, mediaID string, out *mediaInfo) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", f.baseURL, mediaID), nil)
	if err != nil {
		return fmt.Errorf("failed to create resolve request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resolve request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{status: resp.StatusCode, phase: "media resolve"}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode media info: %w", err)
	}

	if out.URL == "" {
		return errors.New("media info has no download url")
	}

	return nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode, phase: "media download"}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}

	return data, nil
}
