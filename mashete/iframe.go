package mashete

import (
	"io"

	"github.com/mitchellh/mapstructure"
)

const (
	defaultIframeHeight      = "500px"
	defaultIframeWidth       = "100%"
	defaultIframeClass       = "pushTop"
	defaultIframeFrameborder = "0"
)

// IframeConfig holds the embed widget settings.
type IframeConfig struct {
	Title             string `mapstructure:"title"`
	URL               string `mapstructure:"url"`
	Height            string `mapstructure:"height"`
	Width             string `mapstructure:"width"`
	AllowTransparency *bool  `mapstructure:"allowTransparency"`
	Class             string `mapstructure:"class"`
	Frameborder       string `mapstructure:"frameborder"`
}

// DecodeIframeConfig reads the widget settings from a free-form config map.
// Scalars are converted loosely, so `frameborder: 0` and `allowTransparency: "false"` both work.
func DecodeIframeConfig(raw map[string]any) (IframeConfig, error) {
	var cfg IframeConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return IframeConfig{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return IframeConfig{}, err
	}
	return cfg.withDefaults(), nil
}

func (c IframeConfig) withDefaults() IframeConfig {
	if c.Height == "" {
		c.Height = defaultIframeHeight
	}
	if c.Width == "" {
		c.Width = defaultIframeWidth
	}
	if c.AllowTransparency == nil {
		t := true
		c.AllowTransparency = &t
	}
	if c.Class == "" {
		c.Class = defaultIframeClass
	}
	if c.Frameborder == "" {
		c.Frameborder = defaultIframeFrameborder
	}
	return c
}

// Iframe renders an external page inside the widget chrome.
type Iframe struct {
	id     string
	config IframeConfig
	raw    map[string]any
}

func NewIframe(id string, raw map[string]any) (*Iframe, error) {
	cfg, err := DecodeIframeConfig(raw)
	if err != nil {
		return nil, err
	}
	return &Iframe{id: id, config: cfg, raw: raw}, nil
}

func (f *Iframe) Config() IframeConfig { return f.config }

func (f *Iframe) Render(w io.Writer) error {
	c := f.config
	return renderIn(w, Chrome{ID: f.id, Title: c.Title, Config: f.raw}, "iframe", struct {
		IframeConfig
		AllowTransparency bool
	}{c, *c.AllowTransparency})
}
