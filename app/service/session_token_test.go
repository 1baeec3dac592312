package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/golang-jwt/jwt/v5"
)

type memoryBlacklist struct {
	mu   sync.Mutex
	jtis map[string]*entity.BlacklistedToken
	err  error
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{jtis: map[string]*entity.BlacklistedToken{}}
}

func (m *memoryBlacklist) Create(_ context.Context, token *entity.BlacklistedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if _, ok := m.jtis[token.JTI]; ok {
		return repository.ErrDuplicate
	}
	m.jtis[token.JTI] = token
	return nil
}

func (m *memoryBlacklist) ExistsByJTI(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.jtis[jti]
	return ok, m.err
}

func newIssuer(clock *testClock, blacklist *memoryBlacklist) *service.SessionIssuer {
	return service.NewSessionIssuer(config.JWTConfig{
		Secret:          "jwt-secret",
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}, blacklist, clock.Now)
}

func sessionUser() *entity.User {
	return &entity.User{ID: 3, Email: "c@x.com", Username: "carol", IsVerified: true, IsActive: true}
}

func TestSessionIssuer_IssuePair(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := newIssuer(clock, newMemoryBlacklist())

	pair, err := issuer.IssuePair(sessionUser())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(clock.now.Add(5*time.Minute)) || !pair.RefreshExpiresAt.Equal(clock.now.Add(24*time.Hour)) {
		t.Fatalf("unexpected expiries: %+v", pair)
	}

	claims, err := issuer.ValidateAccess(pair.Access)
	if err != nil {
		t.Fatalf("access token rejected: %v", err)
	}
	if claims.UserID != 3 || claims.Username != "carol" || claims.Email != "c@x.com" || !claims.IsVerified {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" || claims.Subject != "3" {
		t.Fatalf("expected jti and subject, got %+v", claims.RegisteredClaims)
	}

	clock.Advance(5*time.Minute + time.Second)
	if _, err = issuer.ValidateAccess(pair.Access); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected expired access token to be invalid, got %v", err)
	}
}

func TestSessionIssuer_RejectsOtherAlgorithms(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := newIssuer(clock, newMemoryBlacklist())

	claims := service.Claims{
		UserID:    3,
		TokenType: service.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err = issuer.ValidateAccess(unsigned); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected unsigned token to be invalid, got %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("jwt-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err = issuer.ValidateAccess(hs512); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected HS512 token to be invalid, got %v", err)
	}
}

func TestSessionIssuer_RedeemOnce(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	blacklist := newMemoryBlacklist()
	issuer := newIssuer(clock, blacklist)

	pair, err := issuer.IssuePair(sessionUser())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := issuer.Redeem(context.Background(), pair.Refresh)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	record, ok := blacklist.jtis[claims.ID]
	if !ok || record.UserID != 3 || !record.ExpiresAt.Equal(pair.RefreshExpiresAt) {
		t.Fatalf("expected consumed jti to be blacklisted, got %+v", record)
	}

	if _, err = issuer.Redeem(context.Background(), pair.Refresh); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected second redemption to fail, got %v", err)
	}
}

func TestSessionIssuer_ConcurrentRedeem(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := newIssuer(clock, newMemoryBlacklist())

	pair, err := issuer.IssuePair(sessionUser())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := issuer.Redeem(context.Background(), pair.Refresh); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", successes)
	}
}

func TestSessionIssuer_Blacklist(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	blacklist := newMemoryBlacklist()
	issuer := newIssuer(clock, blacklist)

	pair, err := issuer.IssuePair(sessionUser())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	for _, token := range []string{pair.Refresh, pair.Refresh, "malformed", "", pair.Access} {
		if err = issuer.Blacklist(context.Background(), token); err != nil {
			t.Fatalf("blacklist(%q) failed: %v", token, err)
		}
	}
	if len(blacklist.jtis) != 1 {
		t.Fatalf("expected one blacklisted jti, got %d", len(blacklist.jtis))
	}

	if _, err = issuer.Redeem(context.Background(), pair.Refresh); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("blacklisted token must not redeem, got %v", err)
	}

	fresh, err := issuer.IssuePair(sessionUser())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	blacklist.err = errors.New("store down")
	if err = issuer.Blacklist(context.Background(), fresh.Refresh); err == nil {
		t.Fatalf("expected store failure to surface from the issuer")
	}
}
