package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/template/django/v3"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	templateEmailVerification = "email_verification"
	templatePasswordReset     = "password_reset"

	subjectEmailVerification = "Verify your email address"
	subjectPasswordReset     = "Reset your password"
)

// Templates renders the transactional emails. The plain-text part is derived
// from the rendered HTML.
type Templates struct {
	engine *django.Engine
	strip  *bluemonday.Policy
}

func NewTemplates() (*Templates, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}

	engine := django.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("loading email templates: %w", err)
	}

	return &Templates{
		engine: engine,
		strip:  bluemonday.StrictPolicy(),
	}, nil
}

func (t *Templates) VerificationEmail(to, username, code string, expiryMinutes int) (Message, error) {
	return t.compose(to, subjectEmailVerification, templateEmailVerification, map[string]interface{}{
		"username":          username,
		"verification_code": code,
		"expiry_minutes":    expiryMinutes,
	})
}

func (t *Templates) PasswordResetEmail(to, username, resetURL string, expiryMinutes int) (Message, error) {
	return t.compose(to, subjectPasswordReset, templatePasswordReset, map[string]interface{}{
		"username":       username,
		"reset_url":      resetURL,
		"expiry_minutes": expiryMinutes,
	})
}

func (t *Templates) compose(to, subject, name string, data map[string]interface{}) (Message, error) {
	var buf bytes.Buffer
	if err := t.engine.Render(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("rendering %s: %w", name, err)
	}

	body := buf.String()
	return Message{
		To:      to,
		Subject: subject,
		HTML:    body,
		Text:    t.plainText(body),
	}, nil
}

func (t *Templates) plainText(body string) string {
	stripped := html.UnescapeString(t.strip.Sanitize(body))

	var lines []string
	blank := false
	for _, line := range strings.Split(stripped, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		lines = append(lines, line)
		blank = false
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
