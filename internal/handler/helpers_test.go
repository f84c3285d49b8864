package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillbase/quillbase/internal/auth"
	"github.com/quillbase/quillbase/internal/config"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/media"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/oauth"
	"github.com/quillbase/quillbase/internal/repository"
	"github.com/quillbase/quillbase/internal/service"
)

var (
	asAlice = &model.AuthContext{KeyID: "key-alice", UserID: "alice", Scopes: []string{model.ScopeRead, model.ScopeWrite}}
	asBob   = &model.AuthContext{KeyID: "key-bob", UserID: "bob", Scopes: []string{model.ScopeRead, model.ScopeWrite}}
	asRoot  = &model.AuthContext{KeyID: "key-root", UserID: "root", Scopes: []string{model.ScopeAdmin}, IsSuperuser: true}
)

func testDeps() service.Deps {
	return service.Deps{Logger: discardLogger}
}

func testPolicies(t *testing.T) service.Policies {
	t.Helper()
	p, err := config.LoadPolicies("")
	require.NoError(t, err)
	return p
}

// serve runs one request through h. body may be a string of raw JSON or a
// value to marshal; as, when set, is injected as the authenticated caller.
func serve(t *testing.T, h http.Handler, method, target string, body any, as *model.AuthContext) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if as != nil {
		req = req.WithContext(auth.ContextWithAuth(req.Context(), as))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoErrorf(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equalf(t, want, rec.Code, "body: %s", rec.Body.String())
}

type fakeQueue struct {
	mu      sync.Mutex
	streams []string
	kinds   []string
	err     error
}

func (q *fakeQueue) Enqueue(_ context.Context, stream, kind string, _ any) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.streams = append(q.streams, stream)
	q.kinds = append(q.kinds, kind)
	return "1700000000000-0", nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.kinds)
}

type stubFetcher struct {
	meta *media.Metadata
	err  error
}

func (f *stubFetcher) Fetch(context.Context, string) (*media.Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	meta := *f.meta
	return &meta, nil
}

type storeLikes struct {
	store *lifecycle.MemoryStore[*model.Video]
}

func (l storeLikes) AdjustVideoLikes(ctx context.Context, id string, delta int) (int, error) {
	var likes int
	err := l.store.InTx(ctx, func(ctx context.Context, tx lifecycle.Tx[*model.Video]) error {
		v, err := tx.Get(ctx, id)
		if err != nil {
			return repository.ErrVideoNotFound
		}
		v.Likes = max(0, v.Likes+delta)
		likes = v.Likes
		return tx.Update(ctx, v)
	})
	return likes, err
}

type memoryPins struct {
	mu      sync.Mutex
	byEmail map[string]*model.ContactPin
}

func (m *memoryPins) CreateContactPin(_ context.Context, pin *model.ContactPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[pin.Email]; ok {
		return repository.ErrContactPinExists
	}
	cp := *pin
	m.byEmail[pin.Email] = &cp
	return nil
}

func (m *memoryPins) GetContactPinByEmail(_ context.Context, email string) (*model.ContactPin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrContactPinNotFound
	}
	cp := *pin
	return &cp, nil
}

func (m *memoryPins) UpdateContactPinCode(_ context.Context, pin *model.ContactPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byEmail[pin.Email]
	if !ok {
		return repository.ErrContactPinNotFound
	}
	stored.CodeHash = pin.CodeHash
	stored.UpdatedAt = pin.UpdatedAt
	return nil
}

// memoryAccounts backs users and API keys for the account and admin
// handlers.
type memoryAccounts struct {
	mu          sync.Mutex
	users       map[string]*model.User
	keys        map[string]*model.APIKey
	invalidated []string
}

func newMemoryAccounts(users ...*model.User) *memoryAccounts {
	m := &memoryAccounts{users: map[string]*model.User{}, keys: map[string]*model.APIKey{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryAccounts) GetOrCreateUser(_ context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return u, nil
		}
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryAccounts) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryAccounts) SetSuperuser(_ context.Context, id string, superuser bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsSuperuser = superuser
	return nil
}

func (m *memoryAccounts) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *memoryAccounts) GetAPIKeyByID(_ context.Context, id string) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	cp := *key
	return &cp, nil
}

func (m *memoryAccounts) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.APIKey
	for _, key := range m.keys {
		if key.UserID == userID {
			cp := *key
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryAccounts) RevokeAPIKey(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok || key.IsRevoked() {
		return repository.ErrAPIKeyNotFound
	}
	now := time.Now().UTC()
	key.RevokedAt = &now
	return nil
}

func (m *memoryAccounts) InvalidateUserAuthContexts(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, userID)
	return nil
}

type stubGoogle struct {
	profile *oauth.Profile
	err     error
}

func (g *stubGoogle) AuthCodeURL(context.Context) (string, error) {
	return "https://accounts.google.com/o/oauth2/auth?state=xyz", nil
}

func (g *stubGoogle) Exchange(_ context.Context, state, code string) (*oauth.Profile, error) {
	if g.err != nil {
		return nil, g.err
	}
	if state == "" || code == "" {
		return nil, oauth.ErrInvalidState
	}
	return g.profile, nil
}
