package mashete

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("mashetes").ParseFS(templateFS, "templates/*.html"))

// Chrome is the layout container every widget renders inside.
type Chrome struct {
	ID     string
	Title  string
	Config map[string]any
}

// Wrap writes body inside the chrome.
func (c Chrome) Wrap(w io.Writer, body template.HTML) error {
	conf := "{}"
	if len(c.Config) > 0 {
		data, err := json.Marshal(c.Config)
		if err != nil {
			return err
		}
		conf = string(data)
	}
	return templates.ExecuteTemplate(w, "chrome", struct {
		ID     string
		Title  string
		Config string
		Body   template.HTML
	}{c.ID, c.Title, conf, body})
}

// renderIn executes the named template and wraps its output in chrome.
func renderIn(w io.Writer, c Chrome, name string, data any) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return err
	}
	return c.Wrap(w, template.HTML(body.String()))
}
