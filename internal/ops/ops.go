package ops

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/deskforge/deskcfg/internal/articles"
	"github.com/deskforge/deskcfg/internal/catalog"
	"github.com/deskforge/deskcfg/internal/codec"
	"github.com/deskforge/deskcfg/internal/config"
	"github.com/deskforge/deskcfg/internal/errors"
	"github.com/deskforge/deskcfg/internal/layers"
	"github.com/deskforge/deskcfg/internal/rules"
	"github.com/deskforge/deskcfg/internal/schema"
)

// ConfigParam is the query parameter carrying the share token.
const ConfigParam = "config"

// Pipeline wires the configurator stages for one schema and catalog.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	Schema   *schema.Schema
	Resolver *rules.Resolver
	Layers   *layers.Engine
	Articles *articles.Builder
	Codec    *codec.Codec
	Config   *config.Config
	Catalog  *catalog.Catalog
	Logger   *slog.Logger
}

// NewPipeline builds every stage from s and cat. A nil cfg uses the defaults,
// a nil logger uses slog.Default().
func NewPipeline(s *schema.Schema, cat *catalog.Catalog, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if s == nil {
		return nil, errors.NewInvalidRequest("schema is required")
	}
	if cat == nil {
		cat = catalog.New(nil)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c, err := codec.New(s)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Schema:   s,
		Resolver: rules.New(s),
		Layers:   layers.New(s, logger),
		Articles: articles.NewBuilder(s, cat, articles.Options{ShopSearchURL: cfg.ShopSearchURL}, logger),
		Codec:    c,
		Config:   cfg,
		Catalog:  cat,
		Logger:   logger,
	}, nil
}

// Configuration is the full derived view of one configuration.
type Configuration struct {
	Token         string           `json:"token"`
	ShareURL      string           `json:"share_url"`
	TableQuantity int              `json:"table_quantity"`
	Normalized    rules.Normalized `json:"normalized"`
	Layers        []layers.Result  `json:"layers"`
	Summary       articles.Summary `json:"summary"`
	Source        codec.Kind       `json:"source"`
}

// snapshot derives layers, articles and the share link of n.
func (p *Pipeline) snapshot(n rules.Normalized, qty int, source codec.Kind) (*Configuration, error) {
	token, err := p.Codec.Encode(n.Values, qty)
	if err != nil {
		return nil, err
	}
	return &Configuration{
		Token:         token,
		ShareURL:      p.ShareURL(token),
		TableQuantity: qty,
		Normalized:    n,
		Layers:        p.Layers.Resolve(n),
		Summary:       articles.Summarize(p.Articles.Build(n), qty),
		Source:        source,
	}, nil
}

// ShareURL returns the public configurator URL carrying token.
func (p *Pipeline) ShareURL(token string) string {
	base := p.Config.PublicBaseURL
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + ConfigParam + "=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set(ConfigParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}

// decode reads token and reports how it was understood. Unreadable tokens
// are logged and contribute nothing.
func (p *Pipeline) decode(token string) codec.Decoded {
	token = strings.TrimSpace(token)
	d := p.Codec.Decode(token)
	if token != "" && d.Kind == codec.Unrecognized {
		p.Logger.Warn("ignoring unreadable configuration token", "token", token, "error", errors.NewDecodeFailure(token))
	}
	return d
}

// validateQuantity checks an explicit table quantity. Zero means unset.
func validateQuantity(qty int) error {
	if qty < 0 || qty > codec.MaxTableQuantity {
		return errors.NewInvalidValue("table_quantity", strconv.Itoa(qty))
	}
	return nil
}
