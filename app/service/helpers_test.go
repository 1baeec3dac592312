package service_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"
)

const (
	findUserByEmailQuery  = `(?s)SELECT id, email, username, password_hash, is_verified, is_active, image, created_at, updated_at\s+FROM users WHERE email = \?`
	findUserByIDQuery     = `(?s)SELECT id, email, username, password_hash, is_verified, is_active, image, created_at, updated_at\s+FROM users WHERE id = \?`
	usernameExistsQuery   = `(?s)SELECT EXISTS\(SELECT 1 FROM users WHERE username = \?\)`
	insertUserQuery       = `(?s)INSERT INTO users \(email, username, password_hash, is_verified, is_active, image, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?\)`
	updateUserQuery       = `(?s)UPDATE users SET\s+email = \?,\s+username = \?,\s+password_hash = \?,\s+is_verified = \?,\s+is_active = \?,\s+image = \?,\s+updated_at = \?\s+WHERE id = \?`
	insertCodeQuery       = `(?s)INSERT INTO verification_codes \(user_id, code, created_at, expires_at\)\s+VALUES \(\?, \?, \?, \?\)`
	findCodeByUserQuery   = `(?s)SELECT id, user_id, code, created_at, expires_at\s+FROM verification_codes WHERE user_id = \?`
	deleteCodeByUserQuery = `(?s)DELETE FROM verification_codes WHERE user_id = \?`
	insertBlacklistQuery  = `(?s)INSERT INTO blacklisted_tokens \(jti, user_id, expires_at, blacklisted_at\)\s+VALUES \(\?, \?, \?, \?\)`
	jtiExistsQuery        = `(?s)SELECT EXISTS\(SELECT 1 FROM blacklisted_tokens WHERE jti = \?\)`

	testPassword = "correct-horse"
)

var (
	userColumns = []string{
		"id",
		"email",
		"username",
		"password_hash",
		"is_verified",
		"is_active",
		"image",
		"created_at",
		"updated_at",
	}
	codeColumns = []string{
		"id",
		"user_id",
		"code",
		"created_at",
		"expires_at",
	}
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeVerifier struct {
	claim *entity.IdentityClaim
	err   error
}

func (v *fakeVerifier) Verify(_ context.Context, _ string) (*entity.IdentityClaim, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claim, nil
}

// capture records the string argument a statement was executed with.
type capture struct {
	value string
}

func (c *capture) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		c.value = s
	}
	return ok
}

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	mail     *fakeMailer
	identity *fakeVerifier
	clock    *testClock
	cfg      *config.Config
	svc      service.AccountService
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{FrontendURL: "http://localhost:3000"},
		JWT: config.JWTConfig{
			Secret:          "jwt-secret",
			AccessTokenTTL:  5 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Tokens:   config.TokenConfig{ResetSecret: "reset-secret"},
		Password: config.PasswordConfig{Policy: config.PasswordPolicy{MinLength: 8}},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	templates, err := mailer.NewTemplates()
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}

	f := &fixture{
		db:       db,
		mock:     mock,
		mail:     &fakeMailer{},
		identity: &fakeVerifier{},
		clock:    &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		cfg:      testConfig(),
	}
	f.svc = service.NewAccountService(
		db,
		repository.NewUserRepository(db),
		repository.NewVerificationCodeRepository(db),
		repository.NewBlacklistedTokenRepository(db),
		f.identity,
		f.mail,
		templates,
		f.cfg,
		service.WithClock(f.clock.Now),
		service.WithBcryptCost(bcrypt.MinCost),
	)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	t.Helper()
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

func newUser(t *testing.T, id uint64, email, username string, verified bool) *entity.User {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &entity.User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: hashPassword(t, testPassword),
		IsVerified:   verified,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func userRows(user *entity.User) *sqlmock.Rows {
	var image driver.Value
	if user.Image.Valid {
		image = user.Image.String
	}
	return sqlmock.NewRows(userColumns).AddRow(
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.IsVerified,
		user.IsActive,
		image,
		user.CreatedAt,
		user.UpdatedAt,
	)
}

func (f *fixture) expectFindByEmail(email string, user *entity.User) {
	q := f.mock.ExpectQuery(findUserByEmailQuery).WithArgs(email)
	if user == nil {
		q.WillReturnRows(sqlmock.NewRows(userColumns))
		return
	}
	q.WillReturnRows(userRows(user))
}

func (f *fixture) expectFindByID(id uint64, user *entity.User) {
	q := f.mock.ExpectQuery(findUserByIDQuery).WithArgs(id)
	if user == nil {
		q.WillReturnRows(sqlmock.NewRows(userColumns))
		return
	}
	q.WillReturnRows(userRows(user))
}

func (f *fixture) expectUsernameExists(username string, exists bool) {
	f.mock.ExpectQuery(usernameExistsQuery).
		WithArgs(username).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

// expectCodeReplaced expects a transaction that deletes the user's code and
// inserts a new one, recording the new value in code.
func (f *fixture) expectCodeReplaced(userID uint64, code *capture) {
	f.mock.ExpectBegin()
	f.expectCodeRotation(userID, code)
	f.mock.ExpectCommit()
}

func (f *fixture) expectCodeRotation(userID uint64, code *capture) {
	f.mock.ExpectExec(deleteCodeByUserQuery).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(insertCodeQuery).
		WithArgs(userID, code, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func (f *fixture) expectCode(userID uint64, value string, createdAt time.Time) {
	f.mock.ExpectQuery(findCodeByUserQuery).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(codeColumns).AddRow(uint64(1), userID, value, createdAt, createdAt.Add(service.VerificationCodeTTL)))
}

func (f *fixture) expectNoCode(userID uint64) {
	f.mock.ExpectQuery(findCodeByUserQuery).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(codeColumns))
}
