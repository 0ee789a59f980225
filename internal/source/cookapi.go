package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/junzi314/minutes/internal/errs"
	"github.com/junzi314/minutes/internal/model"
)

// CookApiConfig configures a CookApiClient.
type CookApiConfig struct {
	// BaseURL is the Cook-API origin, e.g. "https://cook.example.com".
	BaseURL string

	// Format is the requested audio codec (default lossy, low bit-per-second).
	Format string

	// Container is the requested archive container (e.g. "zip").
	Container string

	// DownloadTimeout bounds the combined cook+download call.
	DownloadTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
}

// CookApiClient is an AudioSource backed by the Cook-API's speaker-list,
// duration, and archive HTTP endpoints for one RecordingHandle.
type CookApiClient struct {
	httpClient *http.Client
	cfg        CookApiConfig
	handle     model.RecordingHandle
}

var _ AudioSource = (*CookApiClient)(nil)

// NewCookApiClient returns a CookApiClient bound to handle.
func NewCookApiClient(httpClient *http.Client, cfg CookApiConfig, handle model.RecordingHandle) *CookApiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CookApiClient{httpClient: httpClient, cfg: cfg, handle: handle}
}

type speakerListResponse struct {
	Speakers []struct {
		TrackIndex  uint32 `json:"track_index"`
		DisplayName string `json:"display_name"`
		UserID      uint64 `json:"user_id"`
	} `json:"speakers"`
}

// ListSpeakers implements AudioSource.
func (c *CookApiClient) ListSpeakers(ctx context.Context) ([]model.SpeakerInfo, error) {
	endpoint := fmt.Sprintf("%s/recordings/%s/speakers", c.cfg.BaseURL, url.PathEscape(c.handle.RecordingID))

	var parsed speakerListResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, errs.Acquisition(fmt.Errorf("source: list speakers: %w", err))
	}

	speakers := make([]model.SpeakerInfo, len(parsed.Speakers))
	for i, s := range parsed.Speakers {
		speakers[i] = model.SpeakerInfo{TrackIndex: s.TrackIndex, DisplayName: s.DisplayName, UserID: s.UserID}
	}
	return speakers, nil
}

// Fetch implements AudioSource: it POSTs a cook request for the archive,
// downloads the resulting bytes, and extracts them into into.
func (c *CookApiClient) Fetch(ctx context.Context, into string) ([]model.AudioTrack, error) {
	deadline := c.cfg.DownloadTimeout
	if deadline <= 0 {
		deadline = 300 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	archivePath := filepath.Join(into, "archive.zip")
	if err := c.downloadArchive(ctx, archivePath); err != nil {
		if ctx.Err() != nil {
			return nil, errs.AcquisitionTimeoutf("source: fetch recording %s", c.handle.RecordingID)
		}
		return nil, errs.Acquisition(fmt.Errorf("source: download archive: %w", err))
	}

	tracks, err := ExtractArchive(archivePath, into)
	if err != nil {
		return nil, errs.Acquisition(fmt.Errorf("source: extract archive: %w", err))
	}
	return tracks, nil
}

func (c *CookApiClient) downloadArchive(ctx context.Context, dest string) error {
	endpoint := fmt.Sprintf("%s/recordings/%s/archive", c.cfg.BaseURL, url.PathEscape(c.handle.RecordingID))

	body := url.Values{
		"recording_id": {c.handle.RecordingID},
		"access_key":   {c.handle.AccessKey},
		"format":       {c.cfg.Format},
		"container":    {c.cfg.Container},
	}

	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return err
		}
		req.URL.RawQuery = body.Encode()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retryableErr{err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retryableErr{fmt.Errorf("cook-api: server error %d", resp.StatusCode)}
		}
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests {
			return retryableErr{fmt.Errorf("cook-api: status %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("cook-api: unexpected status %d", resp.StatusCode)
		}

		f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(f, resp.Body)
		return err
	})
}

func (c *CookApiClient) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retryableErr{err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retryableErr{fmt.Errorf("cook-api: server error %d", resp.StatusCode)}
		}
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests {
			return retryableErr{fmt.Errorf("cook-api: status %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("cook-api: unexpected status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// retryableErr marks an error as eligible for the retry loop below (transport
// errors and 5xx/408/429, per the Cook-API retry policy).
type retryableErr struct{ err error }

func (r retryableErr) Error() string { return r.err.Error() }
func (r retryableErr) Unwrap() error { return r.err }

// retry runs fn with up to cfg.MaxRetries additional attempts, using
// exponential backoff starting at 1s. Grounded on gitscribe's
// pollForCompletion ticker-based retry loop, adapted from
// poll-until-terminal-status to retry-on-transient-failure.
func (c *CookApiClient) retry(ctx context.Context, fn func() error) error {
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if _, ok := err.(retryableErr); !ok {
			return err
		}
	}
	return lastErr
}
