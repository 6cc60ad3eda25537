// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/models"
)

// RemoteProfile matches the JSON the profile sync service returns.
type RemoteProfile struct {
	ID                  string    `json:"id"`
	ExternalID          string    `json:"external_id"`
	Username            string    `json:"username"`
	AccountStatus       string    `json:"account_status"`
	OnboardingCompleted bool      `json:"profile_completion"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// GetProfileChangesResponse is the top-level structure of the sync service response.
type GetProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProgressRegistry is the part of the progression service the worker drives.
type ProgressRegistry interface {
	EnsureProgress(ctx context.Context, userID string) (*models.UserProgress, error)
	SetOnboardingCompleted(ctx context.Context, userID string, completed bool) error
}

// ProfileSyncWorker polls the profile sync service. Every user it sees gets a
// progress record (registration) and their onboarding flag mirrored, which is
// what gates daily quest generation.
type ProfileSyncWorker struct {
	registry     ProgressRegistry
	log          *logger.Logger
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client

	mu     sync.Mutex
	cursor time.Time
}

func NewProfileSyncWorker(registry ProgressRegistry, log *logger.Logger, baseURL, endpointPath, serviceToken string, interval time.Duration) *ProfileSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProfileSyncWorker{
		registry:     registry,
		log:          log.With("service", "ProfileSyncWorker"),
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	w.log.Info("starting profile sync", "base_url", w.baseURL, "interval", w.interval)
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial sync from the beginning of time
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("initial profile sync failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("profile sync batch failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Info("profile sync stopped")
			return
		}
	}
}

// Cursor is the updated_at of the newest profile processed so far.
func (w *ProfileSyncWorker) Cursor() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// SyncOnce fetches profile changes since the cursor and applies them.
// Returns the number of profiles applied without error.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since := w.Cursor()
	profiles, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		w.log.Debug("no profile changes", "since", since)
		return 0, nil
	}

	var applied, failed int
	latest := since
	for _, p := range profiles {
		if p.ExternalID == "" {
			continue
		}
		if err := w.apply(ctx, p); err != nil {
			failed++
			w.log.Warn("failed to apply profile", "external_id", p.ExternalID, "error", err)
			continue
		}
		applied++
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}

	// The cursor only moves when the whole batch applied, so failures are
	// picked up again next tick. Re-applying a profile is harmless.
	if failed == 0 {
		w.mu.Lock()
		w.cursor = latest
		w.mu.Unlock()
	}

	w.log.Info("profile sync batch done",
		"received", len(profiles),
		"applied", applied,
		"failed", failed,
		"cursor", w.Cursor().Format(time.RFC3339),
	)
	return applied, nil
}

func (w *ProfileSyncWorker) apply(ctx context.Context, p RemoteProfile) error {
	if _, err := w.registry.EnsureProgress(ctx, p.ExternalID); err != nil {
		return err
	}
	return w.registry.SetOnboardingCompleted(ctx, p.ExternalID, p.OnboardingCompleted)
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service non-200 response: %d: %s", resp.StatusCode, string(body))
	}

	var response GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return response.Users, nil
}
