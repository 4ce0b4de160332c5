package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/deskforge/deskcfg/internal/catalog"
	"github.com/deskforge/deskcfg/internal/codec"
	"github.com/deskforge/deskcfg/internal/config"
	"github.com/deskforge/deskcfg/internal/ops"
	"github.com/deskforge/deskcfg/internal/schema"
)

func setupTest(t *testing.T, cfg *config.Config) (http.Handler, *ops.Pipeline) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default: %v", err)
	}
	sample, err := catalog.Sample()
	if err != nil {
		t.Fatalf("catalog.Sample: %v", err)
	}
	p, err := ops.NewPipeline(s, catalog.New(sample), cfg, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	srv, err := NewServer(p, cfg, "test", nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv.Handler, p
}

func tokenFor(t *testing.T, p *ops.Pipeline, values map[string]string) string {
	t.Helper()
	out, err := ops.Encode(context.Background(), p, ops.EncodeInput{Values: values})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return out.Token
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(h http.Handler, form url.Values, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/edit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return do(h, req)
}

// redirectToken returns the config token of a 303 redirect.
func redirectToken(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	return loc.Query().Get("config")
}

// --- pages ---

func TestHandleIndex_Default(t *testing.T) {
	h, p := setupTest(t, nil)
	def := tokenFor(t, p, nil)

	rec := do(h, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Artikelliste",
		"403802",
		"689.00 €",
		"http://localhost:8080/?config=" + def,
		`/preview.svg?config=` + def,
		`name="articleId" value="403802"`,
		`action="https://www.schaefer-shop.de/order/cart"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in page", want)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected security headers")
	}
}

func TestHandleIndex_LockedAndDisabledOptions(t *testing.T) {
	h, p := setupTest(t, nil)
	token := tokenFor(t, p, map[string]string{schema.FieldFrame: schema.FrameElectronics})

	rec := do(h, httptest.NewRequest("GET", "/?config="+url.QueryEscape(token), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<select id="f-color" name="color" disabled>`) {
		t.Error("expected the colour select to be locked for the electronics frame")
	}
}

func TestHandleIndex_PartialRendersContentOnly(t *testing.T) {
	h, _ := setupTest(t, nil)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("HX-Request", "true")
	rec := do(h, req)

	body := rec.Body.String()
	if strings.Contains(body, "<html") {
		t.Error("partial response must not include the layout")
	}
	if !strings.Contains(body, `id="app"`) {
		t.Error("expected the configurator block")
	}
}

func TestHandleIndex_InvalidQuantity(t *testing.T) {
	h, _ := setupTest(t, nil)

	rec := do(h, httptest.NewRequest("GET", "/?qty=150", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Fehler 422") {
		t.Error("expected the error page")
	}
}

// --- POST /edit ---

func TestHandleEdit_HarmlessChangeRedirects(t *testing.T) {
	h, p := setupTest(t, nil)

	rec := postForm(h, url.Values{"config": {tokenFor(t, p, nil)}, schema.FieldColor: {"enzianblau"}}, "")
	token := redirectToken(t, rec)

	d := p.Codec.Decode(token)
	if d.Values[schema.FieldColor] != "enzianblau" {
		t.Errorf("color = %q, want enzianblau", d.Values[schema.FieldColor])
	}
}

func TestHandleEdit_ConfirmFlow(t *testing.T) {
	h, p := setupTest(t, nil)
	current := tokenFor(t, p, map[string]string{
		schema.FieldSuperstructure: schema.SuperstructureHigh,
		schema.FieldShelfCount:     "4",
		schema.FieldRailCount:      "2",
	})

	rec := postForm(h, url.Values{"config": {current}, schema.FieldSuperstructure: {schema.None}}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Änderung bestätigen", `name="confirm" value="true"`, "Abbrechen", "Böden"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in confirmation page", want)
		}
	}

	rec = postForm(h, url.Values{
		"config":  {current},
		"field":   {schema.FieldSuperstructure},
		"value":   {schema.None},
		"confirm": {"true"},
	}, "")
	token := redirectToken(t, rec)
	d := p.Codec.Decode(token)
	if d.Values[schema.FieldShelfCount] != "0" || d.Values[schema.FieldRailCount] != "0" {
		t.Errorf("dependent fields not reset: %v", d.Values)
	}
}

func TestHandleEdit_JSON(t *testing.T) {
	h, p := setupTest(t, nil)
	current := tokenFor(t, p, map[string]string{
		schema.FieldSuperstructure: schema.SuperstructureHigh,
		schema.FieldShelfCount:     "4",
	})

	rec := postForm(h, url.Values{"config": {current}, schema.FieldSuperstructure: {schema.None}}, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out struct {
		Token        string `json:"token"`
		NeedsConfirm bool   `json:"needs_confirm"`
		Committed    bool   `json:"committed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.NeedsConfirm || out.Committed {
		t.Errorf("expected a pending edit, got %+v", out)
	}
	if out.Token != current {
		t.Errorf("token = %q, want unchanged %q", out.Token, current)
	}
}

func TestHandleEdit_SliderIndex(t *testing.T) {
	h, p := setupTest(t, nil)

	idx := slices.Index(p.Schema.OptionIDs(schema.FieldWidth), "2000")
	rec := postForm(h, url.Values{"config": {tokenFor(t, p, nil)}, schema.FieldWidth: {strconv.Itoa(idx)}}, "")
	token := redirectToken(t, rec)

	if got := p.Codec.Decode(token).Values[schema.FieldWidth]; got != "2000" {
		t.Errorf("width = %q, want 2000", got)
	}
}

func TestHandleEdit_QuantityOnly(t *testing.T) {
	h, p := setupTest(t, nil)

	rec := postForm(h, url.Values{"config": {tokenFor(t, p, nil)}, "table_quantity": {"3"}}, "")
	token := redirectToken(t, rec)

	d := p.Codec.Decode(token)
	if d.TableQuantity != 3 {
		t.Errorf("table quantity = %d, want 3", d.TableQuantity)
	}
	if !d.Values.Equal(p.Schema.Defaults()) {
		t.Errorf("values changed: %v", d.Values)
	}
}

func TestHandleEdit_InvalidQuantity(t *testing.T) {
	h, _ := setupTest(t, nil)

	rec := postForm(h, url.Values{"table_quantity": {"abc"}}, "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

// --- preview and quote ---

func TestHandlePreview(t *testing.T) {
	h, p := setupTest(t, nil)

	rec := do(h, httptest.NewRequest("GET", "/preview.svg?config="+tokenFor(t, p, nil), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<svg") || !strings.Contains(body, `id="layer-`) {
		t.Error("expected an SVG with layer images")
	}
}

func TestHandleQuotePage(t *testing.T) {
	h, p := setupTest(t, nil)

	rec := do(h, httptest.NewRequest("GET", "/quote?config="+tokenFor(t, p, nil), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<table>", "mailto:angebot@example.com", "403802"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in quote page", want)
		}
	}
}

// --- JSON API ---

func TestAPIConfigure(t *testing.T) {
	h, p := setupTest(t, nil)

	rec := do(h, httptest.NewRequest("GET", "/api/configure?width=2000&qty=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out ops.ConfigureOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	d := p.Codec.Decode(out.Token)
	if d.Values[schema.FieldWidth] != "2000" || d.TableQuantity != 2 {
		t.Errorf("unexpected token contents: %+v", d)
	}
}

func TestAPIConfigure_InvalidValueIsJSON(t *testing.T) {
	h, _ := setupTest(t, nil)

	rec := do(h, httptest.NewRequest("GET", "/api/configure?width=900", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INVALID_VALUE" {
		t.Errorf("code = %q, want INVALID_VALUE", body.Error.Code)
	}
}

func TestAPIEdit(t *testing.T) {
	h, p := setupTest(t, nil)
	def := tokenFor(t, p, nil)

	req := httptest.NewRequest("POST", "/api/edit", strings.NewReader(`{"config":"`+def+`","field":"side-panel","value":"links"}`))
	rec := do(h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var out ops.EditOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Committed || out.Value != schema.Left {
		t.Errorf("unexpected edit result: committed=%v value=%q", out.Committed, out.Value)
	}

	rec = do(h, httptest.NewRequest("POST", "/api/edit", strings.NewReader(`{"config":"`+def+`","bogus":1}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown JSON field: status = %d, want 400", rec.Code)
	}
}

func TestAPIDecode(t *testing.T) {
	h, _ := setupTest(t, nil)

	rec := do(h, httptest.NewRequest("GET", "/api/decode?config=OwVgDAPghgzgLgZgIwFoCmAbIA", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out ops.DecodeOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Kind != codec.LegacyToken {
		t.Errorf("kind = %v, want legacy", out.Kind)
	}
}

func TestAPIQuoteAndCart(t *testing.T) {
	h, p := setupTest(t, nil)
	def := tokenFor(t, p, nil)

	rec := do(h, httptest.NewRequest("POST", "/api/quote", strings.NewReader(`{"config":"`+def+`","name":"Erika","email":"erika@example.com"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("quote status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var q ops.QuoteOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if q.Reference == "" || !strings.HasPrefix(q.MailTo, "mailto:") {
		t.Errorf("unexpected quote: %+v", q)
	}

	rec = do(h, httptest.NewRequest("GET", "/api/cart?config="+def+"&qty=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("cart status = %d, want 200", rec.Code)
	}
	var c ops.CartOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 2 || c.Lines[0].ArticleID != "403802" {
		t.Errorf("unexpected cart lines: %+v", c.Lines)
	}
}

func TestHealthAndStatic(t *testing.T) {
	h, _ := setupTest(t, nil)

	rec := do(h, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = do(h, httptest.NewRequest("GET", "/static/app.js", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("static: status = %d, want 200", rec.Code)
	}

	rec = do(h, httptest.NewRequest("GET", "/api/schema", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"field_order"`) {
		t.Errorf("schema: status %d", rec.Code)
	}
}

func TestStaticPreviewFade(t *testing.T) {
	h, p := setupTest(t, nil)

	rec := do(h, httptest.NewRequest("GET", "/static/app.js", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	js := rec.Body.String()
	// an unchanged preview URL must not start a fade
	if !strings.Contains(js, `current.getAttribute("src") === src`) {
		t.Error("crossFade does not skip an unchanged preview")
	}
	if !strings.Contains(js, "next.onerror") {
		t.Error("crossFade does not handle a failed preview load")
	}

	// the page's preview URL has the same shape the script builds
	token := tokenFor(t, p, nil)
	rec = do(h, httptest.NewRequest("GET", "/?config="+token, nil))
	if !strings.Contains(rec.Body.String(), `src="/preview.svg?config=`+token+`"`) {
		t.Errorf("index preview src does not match /preview.svg?config=%s", token)
	}
}

func TestImageDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "layer.png"), []byte("png"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.ImageDir = dir
	h, _ := setupTest(t, cfg)

	rec := do(h, httptest.NewRequest("GET", "/bilder/layer.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "png" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
