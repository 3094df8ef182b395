package email

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

//go:embed templates/*.html templates/catalog.yaml
var templateFS embed.FS

var ErrUnknownTemplate = errors.New("unknown email template")

// Site is the branding shared by every email.
type Site struct {
	Name    string
	URL     string
	CodeTTL time.Duration
}

type catalogEntry struct {
	Subject string `yaml:"subject"`
	File    string `yaml:"file"`
}

type entry struct {
	subject *texttemplate.Template
	body    *template.Template
}

// Templates renders the catalog in templates/catalog.yaml.
type Templates struct {
	site    Site
	entries map[string]entry
	now     func() time.Time
}

// Rendered is a message ready to be handed to a transport.
type Rendered struct {
	To      string
	Subject string
	HTML    string
}

type renderData struct {
	Site      string
	SiteURL   string
	Year      int
	ExpiresIn string
	Name      string
	Code      string
	Subject   string
	Body      string
}

// LoadTemplates parses the embedded catalog. Every entry is parsed up front so
// a broken template fails at startup, not when the first visitor arrives.
func LoadTemplates(site Site) (*Templates, error) {
	raw, err := templateFS.ReadFile("templates/catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var catalog map[string]catalogEntry
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	entries := make(map[string]entry, len(catalog))
	for name, ce := range catalog {
		subject, err := texttemplate.New(name).Option("missingkey=error").Parse(ce.Subject)
		if err != nil {
			return nil, fmt.Errorf("parse subject of %s: %w", name, err)
		}

		body, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := body.ParseFS(templateFS, "templates/"+ce.File); err != nil {
			return nil, fmt.Errorf("parse body of %s: %w", name, err)
		}

		entries[name] = entry{subject: subject, body: body}
	}

	return &Templates{site: site, entries: entries, now: time.Now}, nil
}

// Has reports whether name is in the catalog.
func (t *Templates) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Render fills the named template with msg.
func (t *Templates) Render(name string, msg verification.Message) (*Rendered, error) {
	e, ok := t.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	data := renderData{
		Site:      t.site.Name,
		SiteURL:   t.site.URL,
		Year:      t.now().Year(),
		ExpiresIn: humanizeTTL(t.site.CodeTTL),
		Name:      msg.Name,
		Code:      msg.Code,
		Subject:   msg.Subject,
		Body:      msg.Body,
	}

	var subject bytes.Buffer
	if err := e.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("render subject of %s: %w", name, err)
	}

	var body bytes.Buffer
	if err := e.body.ExecuteTemplate(&body, "layout", data); err != nil {
		return nil, fmt.Errorf("render body of %s: %w", name, err)
	}

	return &Rendered{
		To:      msg.To,
		Subject: singleLine(subject.String()),
		HTML:    body.String(),
	}, nil
}

// singleLine keeps visitor-supplied text from breaking the Subject header.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func humanizeTTL(d time.Duration) string {
	if d <= 0 {
		d = verification.DefaultTTL
	}
	if d%time.Hour == 0 {
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	}
	if m := int(d.Round(time.Minute) / time.Minute); m != 1 {
		return fmt.Sprintf("%d minutes", m)
	}
	return "1 minute"
}
