package workers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu         sync.Mutex
	ensured    []string
	onboarding map[string]bool
	failFor    string
}

func (r *fakeRegistry) EnsureProgress(_ context.Context, userID string) (*models.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if userID == r.failFor {
		return nil, errors.New("store unavailable")
	}
	r.ensured = append(r.ensured, userID)
	return models.NewUserProgress("p-"+userID, userID), nil
}

func (r *fakeRegistry) SetOnboardingCompleted(_ context.Context, userID string, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onboarding == nil {
		r.onboarding = make(map[string]bool)
	}
	r.onboarding[userID] = completed
	return nil
}

// sinceLog records the since parameter of every authorised request.
type sinceLog struct {
	mu     sync.Mutex
	values []string
}

func (l *sinceLog) add(v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = append(l.values, v)
}

func (l *sinceLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.values...)
}

func profileServer(t *testing.T, profiles []RemoteProfile, sinces *sinceLog) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/profiles", r.URL.Path)
		if r.Header.Get("X-Service-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sinces.add(r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode(GetProfileChangesResponse{Users: profiles})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProfileSyncWorker_SyncOnce(t *testing.T) {
	updated := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
	profiles := []RemoteProfile{
		{ExternalID: "user-1", OnboardingCompleted: true, UpdatedAt: updated.Add(-time.Hour)},
		{ExternalID: "user-2", OnboardingCompleted: false, UpdatedAt: updated},
		{ExternalID: "", UpdatedAt: updated.Add(time.Hour)},
	}
	sinces := &sinceLog{}
	srv := profileServer(t, profiles, sinces)
	reg := &fakeRegistry{}
	w := NewProfileSyncWorker(reg, logger.NewNop(), srv.URL, "/api/v1/public/profiles", "secret", time.Minute)

	n, err := w.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"user-1", "user-2"}, reg.ensured)
	assert.Equal(t, map[string]bool{"user-1": true, "user-2": false}, reg.onboarding)
	assert.Equal(t, updated, w.Cursor())

	_, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0001-01-01T00:00:00Z", "2025-07-01T09:30:00Z"}, sinces.all())
}

func TestProfileSyncWorker_FailedBatchKeepsCursor(t *testing.T) {
	profiles := []RemoteProfile{
		{ExternalID: "user-1", UpdatedAt: time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)},
		{ExternalID: "user-2", UpdatedAt: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)},
	}
	sinces := &sinceLog{}
	srv := profileServer(t, profiles, sinces)
	reg := &fakeRegistry{failFor: "user-2"}
	w := NewProfileSyncWorker(reg, logger.NewNop(), srv.URL, "/api/v1/public/profiles", "secret", time.Minute)

	n, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, w.Cursor().IsZero())
}

func TestProfileSyncWorker_Non200(t *testing.T) {
	srv := profileServer(t, nil, &sinceLog{})
	w := NewProfileSyncWorker(&fakeRegistry{}, logger.NewNop(), srv.URL, "/api/v1/public/profiles", "wrong", time.Minute)

	_, err := w.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
