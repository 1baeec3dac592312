package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"

	"golang.org/x/crypto/bcrypt"
)

// memoryUsers enforces the same unique keys as the users table.
type memoryUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*entity.User
	// beforeCreate runs before each insert, letting tests inject a racing writer.
	beforeCreate func(u *memoryUsers, user *entity.User)
}

func newMemoryUsers(existing ...*entity.User) *memoryUsers {
	m := &memoryUsers{byID: map[uint64]*entity.User{}}
	for _, u := range existing {
		m.insert(u)
	}
	return m
}

func (m *memoryUsers) insert(user *entity.User) error {
	for _, u := range m.byID {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	user.ID = m.nextID
	stored := *user
	m.byID[user.ID] = &stored
	return nil
}

func (m *memoryUsers) Create(_ context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.beforeCreate != nil {
		hook := m.beforeCreate
		m.beforeCreate = nil
		hook(m, user)
	}
	return m.insert(user)
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.byID {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memoryUsers) FindByID(_ context.Context, id uint64) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.byID[id]; ok {
		found := *u
		return &found, nil
	}
	return nil, nil
}

func (m *memoryUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.byID {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUsers) Update(_ context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *user
	m.byID[user.ID] = &stored
	return nil
}

func newBridge(users *memoryUsers) *service.IdentityBridge {
	return service.NewIdentityBridge(users, bcrypt.MinCost, nil)
}

func TestIdentityBridge_CreatesVerifiedUser(t *testing.T) {
	users := newMemoryUsers()

	user, err := newBridge(users).Resolve(context.Background(), &entity.IdentityClaim{
		UID:           "uid-1",
		Email:         "B@x.com",
		EmailVerified: true,
		Picture:       "https://example.com/b.png",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if user.Email != "b@x.com" || user.Username != "b" || !user.IsVerified || !user.IsActive {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "" {
		t.Fatalf("expected a non-empty password hash")
	}
	if !user.Image.Valid || user.Image.String != "https://example.com/b.png" {
		t.Fatalf("expected provider picture as image, got %+v", user.Image)
	}
}

func TestIdentityBridge_SuffixesTakenUsernames(t *testing.T) {
	users := newMemoryUsers(
		&entity.User{Email: "b@y.com", Username: "b"},
		&entity.User{Email: "b1@y.com", Username: "b1"},
	)

	user, err := newBridge(users).Resolve(context.Background(), &entity.IdentityClaim{Email: "b@x.com", EmailVerified: true})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if user.Username != "b2" {
		t.Fatalf("expected username b2, got %q", user.Username)
	}
}

func TestIdentityBridge_UnverifiedClaim(t *testing.T) {
	users := newMemoryUsers()

	user, err := newBridge(users).Resolve(context.Background(), &entity.IdentityClaim{Email: "c@x.com", EmailVerified: false})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if user.IsVerified {
		t.Fatalf("verification flag must follow the provider")
	}
}

func TestIdentityBridge_UpgradeIsOneWay(t *testing.T) {
	users := newMemoryUsers(
		&entity.User{Email: "u@x.com", Username: "unverified", IsActive: true},
		&entity.User{Email: "v@x.com", Username: "verified", IsVerified: true, IsActive: true},
	)
	bridge := newBridge(users)

	upgraded, err := bridge.Resolve(context.Background(), &entity.IdentityClaim{Email: "u@x.com", EmailVerified: true})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	stored, _ := users.FindByID(context.Background(), upgraded.ID)
	if !stored.IsVerified {
		t.Fatalf("expected stored user to be upgraded")
	}

	kept, err := bridge.Resolve(context.Background(), &entity.IdentityClaim{Email: "v@x.com", EmailVerified: false})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	stored, _ = users.FindByID(context.Background(), kept.ID)
	if !kept.IsVerified || !stored.IsVerified {
		t.Fatalf("verification must never be downgraded")
	}
}

func TestIdentityBridge_UsernameRace(t *testing.T) {
	users := newMemoryUsers()
	users.beforeCreate = func(u *memoryUsers, user *entity.User) {
		_ = u.insert(&entity.User{Email: "racer@y.com", Username: user.Username})
	}

	user, err := newBridge(users).Resolve(context.Background(), &entity.IdentityClaim{Email: "d@x.com", EmailVerified: true})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if user.Username != "d1" {
		t.Fatalf("expected retry with d1, got %q", user.Username)
	}
}

func TestIdentityBridge_EmailRace(t *testing.T) {
	users := newMemoryUsers()
	users.beforeCreate = func(u *memoryUsers, user *entity.User) {
		_ = u.insert(&entity.User{Email: user.Email, Username: "first", IsActive: true})
	}

	user, err := newBridge(users).Resolve(context.Background(), &entity.IdentityClaim{Email: "e@x.com", EmailVerified: true})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if user.Username != "first" || !user.IsVerified {
		t.Fatalf("expected the concurrently created user, upgraded, got %+v", user)
	}
}

func TestIdentityBridge_MissingEmail(t *testing.T) {
	bridge := newBridge(newMemoryUsers())

	for _, claim := range []*entity.IdentityClaim{nil, {UID: "uid"}, {Email: "   "}} {
		if _, err := bridge.Resolve(context.Background(), claim); !errors.Is(err, service.ErrMissingEmail) {
			t.Fatalf("expected ErrMissingEmail, got %v", err)
		}
	}
}

func TestIdentityBridge_ConcurrentFirstLogins(t *testing.T) {
	users := newMemoryUsers()
	bridge := newBridge(users)

	const logins = 5
	var wg sync.WaitGroup
	errs := make(chan error, logins)
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := "sam@domain" + string(rune('0'+i)) + ".com"
			if _, err := bridge.Resolve(context.Background(), &entity.IdentityClaim{Email: email}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("resolve failed: %v", err)
	}

	seen := map[string]bool{}
	for _, u := range users.byID {
		if seen[u.Username] {
			t.Fatalf("duplicate username %q", u.Username)
		}
		seen[u.Username] = true
	}
}
