package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/deskforge/deskcfg/internal/codec"
	"github.com/deskforge/deskcfg/internal/errors"
	"github.com/deskforge/deskcfg/internal/ops"
	"github.com/deskforge/deskcfg/internal/preview"
	"github.com/deskforge/deskcfg/internal/rules"
	"github.com/deskforge/deskcfg/internal/schema"
)

// Handlers contains HTTP route handlers for the configurator.
type Handlers struct {
	pipeline *ops.Pipeline
	renderer *Renderer
}

// IndexPageData is the template data for the configurator page.
type IndexPageData struct {
	PageData
	Config     *ops.ConfigureOutput
	Groups     []GroupView
	PreviewURL string
	QuoteURL   string
	Cart       *ops.CartOutput
	MaxQty     int
}

// GroupView is one accordion entry of the form.
type GroupView struct {
	ID       string
	Title    string
	Sections []SectionView
}

// SectionView is a titled block of fields.
type SectionView struct {
	Title  string
	Fields []FieldView
}

// FieldView is one form control with its derived lock/disable state.
type FieldView struct {
	ID      string
	Label   string
	Slider  bool
	Locked  bool
	Value   string
	Index   int
	Max     int
	Options []OptionView
}

// OptionView is one selectable option.
type OptionView struct {
	ID       string
	Label    string
	Selected bool
	Disabled bool
}

// ConfirmPageData is the template data for the dependent-change confirmation.
type ConfirmPageData struct {
	PageData
	Edit      *ops.EditOutput
	Changes   []ChangeView
	Field     string
	CancelURL string
}

// ChangeView is a dependent change with display labels.
type ChangeView struct {
	Field string
	From  string
	To    string
}

// QuotePageData is the template data for the quote request page.
type QuotePageData struct {
	PageData
	Quote   *ops.QuoteOutput
	HTML    template.HTML
	BackURL string
}

// HandleIndex handles GET /, the configurator page for ?config=.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get(ops.ConfigParam)
	qty := parseIntParam(r, "qty", 0)

	cfg, err := ops.Configure(r.Context(), h.pipeline, ops.ConfigureInput{Token: token, TableQuantity: qty})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	cart, err := ops.Cart(r.Context(), h.pipeline, ops.CartInput{Token: cfg.Token})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "index", IndexPageData{
		PageData: PageData{
			Title:   "AST31 Konfigurator",
			Version: h.renderer.version,
		},
		Config:     cfg,
		Groups:     h.formView(cfg),
		PreviewURL: "/preview.svg?" + ops.ConfigParam + "=" + url.QueryEscape(cfg.Token),
		QuoteURL:   "/quote?" + ops.ConfigParam + "=" + url.QueryEscape(cfg.Token),
		Cart:       cart,
		MaxQty:     codec.MaxTableQuantity,
	})
}

// HandleEdit handles POST /edit, the form submission. The first field whose
// submitted value differs from the current configuration is edited. Edits
// that force other fields need a second submission with confirm=true.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	token := r.PostFormValue(ops.ConfigParam)
	cur, err := ops.Configure(r.Context(), h.pipeline, ops.ConfigureInput{Token: token})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	qty := cur.TableQuantity
	if s := r.PostFormValue("table_quantity"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidValue("table_quantity", s))
			return
		}
		qty = n
	}

	field, value := r.PostFormValue("field"), r.PostFormValue("value")
	if field == "" {
		field, value = h.changedField(r.PostForm, cur)
	}

	if field == "" {
		// quantity-only change
		out, err := ops.Configure(r.Context(), h.pipeline, ops.ConfigureInput{Token: cur.Token, TableQuantity: qty})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		h.respondEdit(w, r, &ops.EditOutput{Configuration: out.Configuration, Committed: true})
		return
	}

	out, err := ops.Edit(r.Context(), h.pipeline, ops.EditInput{
		Token:         cur.Token,
		Field:         field,
		Value:         value,
		Confirm:       r.PostFormValue("confirm") == "true",
		TableQuantity: qty,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondEdit(w, r, out)
}

func (h *Handlers) respondEdit(w http.ResponseWriter, r *http.Request, out *ops.EditOutput) {
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	if out.Committed {
		http.Redirect(w, r, pageURL(out.Token), http.StatusSeeOther)
		return
	}

	s := h.pipeline.Schema
	changes := make([]ChangeView, 0, len(out.Changes))
	for _, c := range out.Changes {
		f, _ := s.Field(c.Field)
		changes = append(changes, ChangeView{
			Field: f.Label,
			From:  s.Label(c.Field, c.From),
			To:    s.Label(c.Field, c.To),
		})
	}
	f, _ := s.Field(out.Field)

	h.renderer.renderPage(w, r, "confirm", ConfirmPageData{
		PageData: PageData{
			Title:   "Änderung bestätigen",
			Version: h.renderer.version,
		},
		Edit:      out,
		Changes:   changes,
		Field:     f.Label,
		CancelURL: pageURL(out.Token),
	})
}

// changedField finds the first field, in form order, whose submitted value
// differs from cur. Slider fields submit an option index that is snapped to
// the nearest enabled option.
func (h *Handlers) changedField(form url.Values, cur *ops.ConfigureOutput) (string, string) {
	s := h.pipeline.Schema
	for _, f := range s.Fields() {
		submitted, ok := form[f.ID]
		if !ok || len(submitted) == 0 {
			continue
		}
		value := submitted[0]

		if f.Slider {
			idx, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			options := s.OptionIDs(f.ID)
			last := slices.Index(options, cur.Normalized.Values[f.ID])
			value = options[rules.SnapToEnabled(options, cur.Normalized.State(f.ID), idx, last)]
		}

		if id, ok := s.Resolve(f.ID, value); ok && id != cur.Normalized.Values[f.ID] {
			return f.ID, id
		}
	}
	return "", ""
}

// HandlePreview handles GET /preview.svg, the composite layer image.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	cfg, err := ops.Configure(r.Context(), h.pipeline, ops.ConfigureInput{Token: r.URL.Query().Get(ops.ConfigParam)})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	preview.Render(w, h.pipeline.Schema.Stage, cfg.Layers, preview.Options{ImagePrefix: "/"})
}

// HandleQuote handles GET /quote, the quote request page.
func (h *Handlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := ops.Quote(r.Context(), h.pipeline, ops.QuoteInput{
		Token:         r.URL.Query().Get(ops.ConfigParam),
		TableQuantity: parseIntParam(r, "qty", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "quote", QuotePageData{
		PageData: PageData{
			Title:   "Angebot anfordern",
			Version: h.renderer.version,
		},
		Quote: q,
		// goldmark escapes raw HTML in the markdown source
		HTML:    template.HTML(q.HTML), //nolint:gosec
		BackURL: pageURL(r.URL.Query().Get(ops.ConfigParam)),
	})
}

// HandleAPIConfigure handles GET /api/configure. Field values given as
// query parameters are applied over ?config=.
func (h *Handlers) HandleAPIConfigure(w http.ResponseWriter, r *http.Request) {
	values := make(map[string]string)
	for _, f := range h.pipeline.Schema.Fields() {
		if v := r.URL.Query().Get(f.ID); v != "" {
			values[f.ID] = v
		}
	}

	out, err := ops.Configure(r.Context(), h.pipeline, ops.ConfigureInput{
		Token:         r.URL.Query().Get(ops.ConfigParam),
		Values:        values,
		TableQuantity: parseIntParam(r, "qty", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// editRequest is the JSON body of POST /api/edit.
type editRequest struct {
	Config        string `json:"config"`
	Field         string `json:"field"`
	Value         string `json:"value"`
	Confirm       bool   `json:"confirm"`
	TableQuantity int    `json:"table_quantity"`
}

// HandleAPIEdit handles POST /api/edit.
func (h *Handlers) HandleAPIEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	out, err := ops.Edit(r.Context(), h.pipeline, ops.EditInput{
		Token:         req.Config,
		Field:         req.Field,
		Value:         req.Value,
		Confirm:       req.Confirm,
		TableQuantity: req.TableQuantity,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleAPIDecode handles GET /api/decode.
func (h *Handlers) HandleAPIDecode(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Decode(r.Context(), h.pipeline, ops.DecodeInput{Token: r.URL.Query().Get(ops.ConfigParam)})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// quoteRequest is the JSON body of POST /api/quote.
type quoteRequest struct {
	Config        string `json:"config"`
	TableQuantity int    `json:"table_quantity"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Company       string `json:"company"`
	Message       string `json:"message"`
}

// HandleAPIQuote handles POST /api/quote.
func (h *Handlers) HandleAPIQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	out, err := ops.Quote(r.Context(), h.pipeline, ops.QuoteInput{
		Token:         req.Config,
		TableQuantity: req.TableQuantity,
		Name:          req.Name,
		Email:         req.Email,
		Company:       req.Company,
		Message:       req.Message,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleAPICart handles GET /api/cart.
func (h *Handlers) HandleAPICart(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Cart(r.Context(), h.pipeline, ops.CartInput{
		Token:         r.URL.Query().Get(ops.ConfigParam),
		TableQuantity: parseIntParam(r, "qty", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleAPISchema handles GET /api/schema.
func (h *Handlers) HandleAPISchema(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, ops.Describe(h.pipeline))
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  h.renderer.version,
		"articles": h.pipeline.Catalog.Len(),
	})
}

// formView pairs the schema's form layout with the derived field state.
func (h *Handlers) formView(cfg *ops.ConfigureOutput) []GroupView {
	s := h.pipeline.Schema
	groups := make([]GroupView, 0, len(s.Groups))
	for _, g := range s.Groups {
		gv := GroupView{ID: g.ID, Title: g.Title}
		for _, sec := range g.Sections {
			sv := SectionView{Title: sec.Title}
			for _, f := range sec.Fields {
				sv.Fields = append(sv.Fields, fieldView(s, f, cfg.Normalized))
			}
			gv.Sections = append(gv.Sections, sv)
		}
		groups = append(groups, gv)
	}
	return groups
}

func fieldView(s *schema.Schema, f schema.Field, n rules.Normalized) FieldView {
	st := n.State(f.ID)
	value := n.Values[f.ID]
	fv := FieldView{
		ID:     f.ID,
		Label:  f.Label,
		Slider: f.Slider,
		Locked: st.Locked,
		Value:  value,
	}
	for i, o := range s.OptionsFor(f.ID) {
		if o.ID == value {
			fv.Index = i
		}
		fv.Options = append(fv.Options, OptionView{
			ID:       o.ID,
			Label:    o.Label,
			Selected: o.ID == value,
			Disabled: !st.Enabled(o.ID),
		})
	}
	fv.Max = len(fv.Options) - 1
	return fv
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// pageURL is the configurator page for token.
func pageURL(token string) string {
	if strings.TrimSpace(token) == "" {
		return "/"
	}
	return "/?" + ops.ConfigParam + "=" + url.QueryEscape(token)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
