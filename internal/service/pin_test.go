package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbase/quillbase/internal/auth"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/repository"
)

var cheapParams = auth.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type memoryPins struct {
	mu      sync.Mutex
	byEmail map[string]*model.ContactPin
}

func newMemoryPins() *memoryPins {
	return &memoryPins{byEmail: map[string]*model.ContactPin{}}
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

func (m *memoryPins) hash(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byEmail[email].CodeHash
}

func newPinService(store PinStore) *PinService {
	svc := NewPinService(store, Deps{})
	svc.SetHashParams(cheapParams)
	return svc
}

func TestPinService_CreateAndLogin(t *testing.T) {
	ctx := context.Background()
	store := newMemoryPins()
	svc := newPinService(store)

	pin, err := svc.Create(ctx, "Owner@Example.com", "4821")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", pin.Email)
	assert.NotContains(t, pin.CodeHash, "4821")
	assert.True(t, strings.HasPrefix(pin.CodeHash, "$argon2id$"))

	require.NoError(t, svc.Login(ctx, "owner@example.com", "4821"))

	requireKind(t, svc.Login(ctx, "owner@example.com", "0000"), lifecycle.ErrForbidden)
	requireKind(t, svc.Login(ctx, "stranger@example.com", "4821"), lifecycle.ErrForbidden)

	_, err = svc.Create(ctx, "owner@example.com", "9999")
	requireKind(t, err, lifecycle.ErrConflict)
}

func TestPinService_Validation(t *testing.T) {
	svc := newPinService(newMemoryPins())

	tests := []struct {
		name  string
		email string
		code  string
	}{
		{"bad_email", "owner", "1234"},
		{"short_pin", "owner@example.com", "123"},
		{"long_pin", "owner@example.com", "1234567890123"},
		{"letters", "owner@example.com", "12ab"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), test.email, test.code)
			requireKind(t, err, lifecycle.ErrValidation)
		})
	}
}

func TestPinService_Reset(t *testing.T) {
	ctx := context.Background()
	store := newMemoryPins()
	svc := newPinService(store)

	_, err := svc.Create(ctx, "owner@example.com", "1111")
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx, "owner@example.com", "2222"))
	requireKind(t, svc.Login(ctx, "owner@example.com", "1111"), lifecycle.ErrForbidden)
	require.NoError(t, svc.Login(ctx, "owner@example.com", "2222"))

	requireKind(t, svc.Reset(ctx, "nobody@example.com", "2222"), lifecycle.ErrNotFound)
}

func TestPinService_RehashOnLogin(t *testing.T) {
	ctx := context.Background()
	store := newMemoryPins()
	svc := newPinService(store)

	_, err := svc.Create(ctx, "owner@example.com", "5555")
	require.NoError(t, err)
	before := store.hash("owner@example.com")

	stronger := cheapParams
	stronger.Time = 2
	svc.SetHashParams(stronger)

	require.NoError(t, svc.Login(ctx, "owner@example.com", "5555"))
	after := store.hash("owner@example.com")
	assert.NotEqual(t, before, after)
	assert.False(t, auth.NeedsRehash(after, stronger))

	require.NoError(t, svc.Login(ctx, "owner@example.com", "5555"))
}
