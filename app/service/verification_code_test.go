package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

type recordingCodeWriter struct {
	calls      []string
	created    *entity.VerificationCode
	err        error
	createErrs []error
}

func (w *recordingCodeWriter) DeleteByUserID(_ context.Context, userID uint64) (int64, error) {
	w.calls = append(w.calls, "delete")
	return 1, w.err
}

func (w *recordingCodeWriter) Create(_ context.Context, code *entity.VerificationCode) error {
	w.calls = append(w.calls, "create")
	if len(w.createErrs) > 0 {
		err := w.createErrs[0]
		w.createErrs = w.createErrs[1:]
		if err != nil {
			return err
		}
	}
	w.created = code
	return nil
}

func TestCodeGenerator_Generate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := NewCodeGenerator(func() time.Time { return now })
	writer := &recordingCodeWriter{}

	code, err := gen.Generate(context.Background(), writer, 9)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(writer.calls) != 2 || writer.calls[0] != "delete" || writer.calls[1] != "create" {
		t.Fatalf("expected delete then create, got %v", writer.calls)
	}
	if writer.created != code || code.UserID != 9 {
		t.Fatalf("unexpected code: %+v", code)
	}
	if len(code.Code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code.Code)
	}
	for _, ch := range code.Code {
		if ch < '0' || ch > '9' {
			t.Fatalf("expected digits only, got %q", code.Code)
		}
	}
	if !code.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", code.ExpiresAt)
	}
	if !code.IsValid(now.Add(10*time.Minute-time.Nanosecond)) || code.IsValid(now.Add(10*time.Minute)) {
		t.Fatalf("code must be valid strictly before its expiry")
	}
}

func TestCodeGenerator_KeepsLeadingZeros(t *testing.T) {
	gen := NewCodeGenerator(nil)
	gen.random = bytes.NewReader(make([]byte, 64))

	code, err := gen.Generate(context.Background(), &recordingCodeWriter{}, 1)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if code.Code != "000000" {
		t.Fatalf("expected 000000, got %q", code.Code)
	}
}

func TestCodeGenerator_StopsOnDeleteFailure(t *testing.T) {
	gen := NewCodeGenerator(nil)
	writer := &recordingCodeWriter{err: errors.New("db down")}

	if _, err := gen.Generate(context.Background(), writer, 1); err == nil {
		t.Fatalf("expected error")
	}
	if len(writer.calls) != 1 {
		t.Fatalf("expected no insert after failed delete, got %v", writer.calls)
	}
}

func TestCodeGenerator_RetriesDuplicateOnce(t *testing.T) {
	gen := NewCodeGenerator(nil)
	writer := &recordingCodeWriter{createErrs: []error{repository.ErrDuplicate}}

	code, err := gen.Generate(context.Background(), writer, 3)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	want := []string{"delete", "create", "delete", "create"}
	if len(writer.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, writer.calls)
	}
	for i := range want {
		if writer.calls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, writer.calls)
		}
	}
	if writer.created != code {
		t.Fatalf("expected the retried code to be returned")
	}
}

func TestCodeGenerator_DuplicateTwiceIsConflict(t *testing.T) {
	gen := NewCodeGenerator(nil)
	writer := &recordingCodeWriter{createErrs: []error{repository.ErrDuplicate, repository.ErrDuplicate}}

	_, err := gen.Generate(context.Background(), writer, 3)
	if !errors.Is(err, ErrCodeConflict) || Kind(err) != ErrConflict {
		t.Fatalf("expected ErrCodeConflict, got %v", err)
	}
	if len(writer.calls) != 4 {
		t.Fatalf("expected two attempts, got %v", writer.calls)
	}
}

func TestCodeGenerator_CreateFailureIsNotRetried(t *testing.T) {
	gen := NewCodeGenerator(nil)
	writer := &recordingCodeWriter{createErrs: []error{errors.New("db down")}}

	if _, err := gen.Generate(context.Background(), writer, 3); err == nil || errors.Is(err, ErrCodeConflict) {
		t.Fatalf("expected the raw store error, got %v", err)
	}
	if len(writer.calls) != 2 {
		t.Fatalf("expected a single attempt, got %v", writer.calls)
	}
}

func TestCodeGenerator_RandomSourceFailure(t *testing.T) {
	gen := NewCodeGenerator(nil)
	gen.random = bytes.NewReader(nil)

	if _, err := gen.Generate(context.Background(), &recordingCodeWriter{}, 1); err == nil {
		t.Fatalf("expected error from exhausted random source")
	}
}

func TestUsernameBase(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"b@x.com", "b"},
		{"John.Doe+tag@x.com", "john.doe+tag"},
		{"we ird!#@x.com", "weird"},
		{"@x.com", "user"},
		{"no-at-sign", "no-at-sign"},
		{"Ünïcode@example.com", "ünïcode"},
	}
	for _, tt := range tests {
		if got := usernameBase(tt.email); got != tt.want {
			t.Fatalf("usernameBase(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}

func TestRandomPassword(t *testing.T) {
	password, err := randomPassword(NewIdentityBridge(nil, 4, nil).random, randomPasswordLength)
	if err != nil {
		t.Fatalf("random password failed: %v", err)
	}
	if len(password) != randomPasswordLength {
		t.Fatalf("expected %d characters, got %d", randomPasswordLength, len(password))
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrUserExists, ErrConflict},
		{ErrUsernameTaken, ErrConflict},
		{ErrUserNotFound, ErrNotFound},
		{ErrInvalidCredentials, ErrInvalid},
		{ErrEmailNotVerified, ErrUnverified},
		{ErrCodeExpired, ErrExpired},
		{ErrCodeConflict, ErrConflict},
		{ErrPasswordMismatch, ErrValidation},
		{errors.Join(ErrUpstream, errors.New("smtp")), ErrUpstream},
		{errors.New("raw"), nil},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.kind {
			t.Fatalf("Kind(%v) = %v, want %v", tt.err, got, tt.kind)
		}
	}
}
