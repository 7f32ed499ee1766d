package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"twin_gateway/internal/config"
	"twin_gateway/internal/middleware"
	"twin_gateway/internal/models"
	"twin_gateway/internal/orchestrator"
	"twin_gateway/internal/storage"
	"twin_gateway/internal/tools"
)

type fakeUsers struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]*models.User
	byID    map[int64]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		nextID:  1,
		byEmail: make(map[string]*models.User),
		byID:    make(map[int64]*models.User),
	}
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[user.Email]; exists {
		return storage.ErrEmailTaken
	}
	user.ID = f.nextID
	f.nextID++
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[int64]*models.UserProfile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[int64]*models.UserProfile)}
}

func (f *fakeProfiles) GetByUserID(_ context.Context, userID int64) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	return profile, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, profile *models.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.UserID] = profile
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []*models.ResponseRecord
}

func (f *fakeHistory) Enqueue(_ context.Context, record *models.ResponseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeHistory) all() []*models.ResponseRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ResponseRecord, len(f.records))
	copy(out, f.records)
	return out
}

type fakeLister struct {
	records []*models.ResponseRecord
	gotLimit int
}

func (f *fakeLister) ListByUser(_ context.Context, _ int64, limit int) ([]*models.ResponseRecord, error) {
	f.gotLimit = limit
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

type fakeGenerator struct {
	result *models.GenerationResult
	err    error

	streamEvents   []tools.Event
	streamModel string
	streamErr      error
	closeStream    bool

	lastProfile *models.UserProfile
	lastInput   orchestrator.Input
}

func (f *fakeGenerator) Generate(_ context.Context, profile *models.UserProfile, in orchestrator.Input) (*models.GenerationResult, error) {
	f.lastProfile = profile
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeGenerator) GenerateStream(_ context.Context, profile *models.UserProfile, in orchestrator.Input) (<-chan tools.Event, string, error) {
	f.lastProfile = profile
	f.lastInput = in
	if f.streamErr != nil {
		return nil, "", f.streamErr
	}
	ch := make(chan tools.Event, len(f.streamEvents)+1)
	for _, ev := range f.streamEvents {
		ch <- ev
	}
	if f.closeStream {
		close(ch)
	}
	return ch, f.streamModel, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "unit-test-secret-key-0123456789"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Stream.IdleTimeout = 200 * time.Millisecond
	cfg.Stream.KeepAliveInterval = time.Hour
	cfg.Stream.BufferSize = 32
	return cfg
}

func newTestDeps() (*Dependencies, *fakeUsers, *fakeProfiles, *fakeHistory, *fakeGenerator) {
	users := newFakeUsers()
	profiles := newFakeProfiles()
	history := &fakeHistory{}
	gen := &fakeGenerator{}
	deps := &Dependencies{
		Cfg:         testConfig(),
		Users:       users,
		Profiles:    profiles,
		History:     history,
		HistoryList: &fakeLister{},
		Generator:   gen,
	}
	return deps, users, profiles, history, gen
}

// authedRequest builds a request carrying an authenticated user ID, the way
// the session middleware would.
func authedRequest(t *testing.T, method, target, body string, userID int64) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}
