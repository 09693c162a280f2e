package layout

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Widget types a layout can mount.
const (
	TypeTodo   = "todo"
	TypeIframe = "iframe"
)

var ErrInvalid = errors.New("invalid layout")

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Mashete is one widget instance of the page.
type Mashete struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Title  string         `yaml:"title"`
	Config map[string]any `yaml:"config"`
}

// Layout lists the widget instances mounted on the portal page.
type Layout struct {
	Mashetes []Mashete `yaml:"mashetes"`
}

// Load reads a layout file. ${VAR} and ${VAR:-default} references are expanded
// from the environment; a bare $ is left alone.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		name, def, _ := strings.Cut(envVarRegex.FindStringSubmatch(match)[1], ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		return def
	})
}

func (l *Layout) validate() error {
	seen := make(map[string]struct{}, len(l.Mashetes))
	for i, m := range l.Mashetes {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("%w: mashete %d has no id", ErrInvalid, i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: duplicate mashete id %q", ErrInvalid, m.ID)
		}
		seen[m.ID] = struct{}{}
		switch m.Type {
		case TypeTodo, TypeIframe:
		default:
			return fmt.Errorf("%w: mashete %q has unknown type %q", ErrInvalid, m.ID, m.Type)
		}
	}
	return nil
}

// Find returns the widget with the given id.
func (l *Layout) Find(id string) (Mashete, bool) {
	for _, m := range l.Mashetes {
		if m.ID == id {
			return m, true
		}
	}
	return Mashete{}, false
}

// OfType returns the widgets of type t in layout order.
func (l *Layout) OfType(t string) []Mashete {
	var out []Mashete
	for _, m := range l.Mashetes {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Settings returns the widget config with the title merged in, as rendered by the widget.
func (m Mashete) Settings() map[string]any {
	out := make(map[string]any, len(m.Config)+1)
	for k, v := range m.Config {
		out[k] = v
	}
	if _, ok := out["title"]; !ok && m.Title != "" {
		out["title"] = m.Title
	}
	return out
}
