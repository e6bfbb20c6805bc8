// Package mail renders and sends HTML email.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lepinkainen/registry-preview/internal/config"
	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
	"github.com/lepinkainen/registry-preview/templates"
)

// templateSuffix is appended to template names: "cache_report" loads "cache_report.html.tmpl".
const templateSuffix = ".html.tmpl"

type Service struct {
	sender  Sender
	enabled bool

	// overrideFS is consulted first so templates can be edited without rebuilding.
	overrideFS fs.FS
	fallbackFS fs.FS
}

func NewService(cfg config.MailConfig) *Service {
	var sender Sender
	if cfg.Enabled {
		sender = NewZohoSender(cfg)
	} else {
		sender = &NoOpSender{}
	}
	return NewServiceWithSender(sender, cfg.Enabled)
}

// NewServiceWithSender builds a Service around an existing sender.
func NewServiceWithSender(sender Sender, enabled bool) *Service {
	return &Service{
		sender:     sender,
		enabled:    enabled,
		overrideFS: os.DirFS("templates"),
		fallbackFS: templates.EmbeddedTemplates,
	}
}

// SetTemplateOverrideFS switches the filesystem searched before the embedded templates.
func (s *Service) SetTemplateOverrideFS(f fs.FS) {
	s.overrideFS = f
}

func (s *Service) IsEnabled() bool {
	return s.enabled
}

// SendRenderedEmail sends htmlBody as-is.
func (s *Service) SendRenderedEmail(ctx context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient is required")
	}
	return s.sender.Send(ctx, Message{To: to, Subject: subject, HTML: htmlBody})
}

// SendTemplatedEmail renders templateName with data and sends the result.
func (s *Service) SendTemplatedEmail(ctx context.Context, to, subject, templateName string, data any) error {
	body, err := s.Render(templateName, data)
	if err != nil {
		return err
	}
	return s.SendRenderedEmail(ctx, to, subject, body)
}

// Render executes a named template, preferring the override filesystem.
func (s *Service) Render(templateName string, data any) (string, error) {
	tmpl, err := s.loadTemplate(templateName)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

func (s *Service) loadTemplate(name string) (*template.Template, error) {
	file := name + templateSuffix

	for _, fsys := range []fs.FS{s.overrideFS, s.fallbackFS} {
		if fsys == nil {
			continue
		}
		content, err := fs.ReadFile(fsys, file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", file, err)
		}

		slog.Debug("Loading template", "name", name)
		tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", file, err)
		}
		return tmpl, nil
	}
	return nil, fmt.Errorf("template %s not found", name)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatTime": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
		"percent":    func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
		"truncate":   linkpreview.Truncate,
		"price": func(p *float64) string {
			if p == nil {
				return ""
			}
			return fmt.Sprintf("$%.2f", *p)
		},
	}
}
