package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deskforge/deskcfg/internal/config"
	"github.com/deskforge/deskcfg/internal/db"
)

// setupTestEnv creates a temporary database and default config for testing.
func setupTestEnv(t *testing.T) *appEnv {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return &appEnv{
		db:     database,
		cfg:    config.DefaultConfig(),
		logger: newLogger(io.Discard, "error"),
	}
}

// runCLI runs the app with args and returns what it wrote.
func runCLI(t *testing.T, env *appEnv, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newCLIApp(env)
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"deskcfg"}, args...))
	return buf.String(), err
}

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, s)
	}
	return out
}

func TestParseSet(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		expected  map[string]string
		expectErr bool
	}{
		{name: "empty", input: nil, expected: nil},
		{name: "single", input: []string{"color=enzianblau"}, expected: map[string]string{"color": "enzianblau"}},
		{name: "spaces trimmed", input: []string{" width = 750 "}, expected: map[string]string{"width": "750"}},
		{name: "later wins", input: []string{"width=750", "width=2000"}, expected: map[string]string{"width": "2000"}},
		{name: "empty value kept", input: []string{"color="}, expected: map[string]string{"color": ""}},
		{name: "missing separator", input: []string{"color"}, expectErr: true},
		{name: "missing field", input: []string{"=750"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSet(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
			for k, v := range tt.expected {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("hidden message")
	logger.Warn("shown message")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("info record should be filtered at warn level:\n%s", out)
	}
	if !strings.Contains(out, "shown message") {
		t.Errorf("warn record missing:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected no colour codes for a non-terminal writer")
	}
}

func TestCLIConfigure(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("defaults", func(t *testing.T) {
		out, err := runCLI(t, env, "configure")
		if err != nil {
			t.Fatalf("configure failed: %v", err)
		}
		result := decodeJSON(t, out)
		p, err := env.Pipeline(context.Background())
		if err != nil {
			t.Fatalf("pipeline: %v", err)
		}
		want, err := p.Codec.Encode(p.Schema.Defaults(), 1)
		if err != nil {
			t.Fatalf("encode defaults: %v", err)
		}
		if result["token"] != want {
			t.Errorf("token = %v, want %s", result["token"], want)
		}
	})

	t.Run("set and qty", func(t *testing.T) {
		out, err := runCLI(t, env, "configure", "--set", "color=enzianblau", "--qty", "2")
		if err != nil {
			t.Fatalf("configure failed: %v", err)
		}
		result := decodeJSON(t, out)
		values := result["normalized"].(map[string]any)["values"].(map[string]any)
		if values["color"] != "enzianblau" {
			t.Errorf("color = %v, want enzianblau", values["color"])
		}
		if result["table_quantity"] != float64(2) {
			t.Errorf("table_quantity = %v, want 2", result["table_quantity"])
		}
	})

	t.Run("malformed set", func(t *testing.T) {
		_, err := runCLI(t, env, "configure", "--set", "color")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("unknown value", func(t *testing.T) {
		_, err := runCLI(t, env, "configure", "--set", "color=pink")
		if err == nil || !strings.Contains(err.Error(), "INVALID_VALUE") {
			t.Errorf("expected INVALID_VALUE, got %v", err)
		}
	})
}

func TestCLIEncodeDecode(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "encode", "--set", "color=enzianblau", "--qty", "3")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	token := decodeJSON(t, out)["token"].(string)
	if token == "" {
		t.Fatal("expected a token")
	}

	out, err = runCLI(t, env, "decode", token)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	result := decodeJSON(t, out)
	if result["kind"] != "strict" {
		t.Errorf("kind = %v, want strict", result["kind"])
	}
	if result["table_quantity"] != float64(3) {
		t.Errorf("table_quantity = %v, want 3", result["table_quantity"])
	}
	if result["token"] != token {
		t.Errorf("canonical token = %v, want %s", result["token"], token)
	}

	if _, err := runCLI(t, env, "decode"); err == nil {
		t.Error("expected error without token")
	}
}

func TestCLIEdit(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "encode",
		"--set", "superstructure=high", "--set", "shelf-count=4", "--set", "rail-count=2")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	current := decodeJSON(t, out)["token"].(string)

	out, err = runCLI(t, env, "edit", "--field", "superstructure", "--value", "none", current)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	pending := decodeJSON(t, out)
	if pending["needs_confirm"] != true || pending["committed"] != false {
		t.Fatalf("expected pending edit, got %v", pending)
	}

	out, err = runCLI(t, env, "edit", "--field", "superstructure", "--value", "none", "--confirm", current)
	if err != nil {
		t.Fatalf("edit --confirm failed: %v", err)
	}
	committed := decodeJSON(t, out)
	if committed["token"] != pending["pending_token"] {
		t.Errorf("token = %v, want %v", committed["token"], pending["pending_token"])
	}
}

func TestCLIArticles(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "articles", "--qty", "2")
	if err != nil {
		t.Fatalf("articles failed: %v", err)
	}
	for _, want := range []string{"Artikel", "403802", "689.00 €", "Anzahl Tische: 2", "Gesamt: 1378.00 €"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, env, "articles", "--json")
	if err != nil {
		t.Fatalf("articles --json failed: %v", err)
	}
	if items, _ := decodeJSON(t, out)["items"].([]any); len(items) == 0 {
		t.Error("expected items in JSON output")
	}
}

func TestCLILayers(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "layers")
	if err != nil {
		t.Fatalf("layers failed: %v", err)
	}
	if !strings.Contains(out, "Ebene") || !strings.Contains(out, "translate(") {
		t.Errorf("unexpected table:\n%s", out)
	}

	visibleOut, _ := runCLI(t, env, "layers", "--json")
	allOut, _ := runCLI(t, env, "layers", "--json", "--all")
	var visible, all []map[string]any
	if err := json.Unmarshal([]byte(visibleOut), &visible); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(allOut), &all); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(visible) == 0 || len(all) < len(visible) {
		t.Errorf("visible=%d all=%d", len(visible), len(all))
	}
	for _, l := range visible {
		if l["visible"] != true {
			t.Errorf("hidden layer %v listed without --all", l["id"])
		}
	}
}

func TestCLIRender(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "render", "--image-prefix", "https://cdn.example/")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "<svg") || !strings.Contains(out, "https://cdn.example/") {
		t.Errorf("unexpected SVG:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "preview.svg")
	if _, err := runCLI(t, env, "render", "--out", path); err != nil {
		t.Fatalf("render --out failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if !bytes.Contains(data, []byte("</svg>")) {
		t.Error("preview file is not a complete SVG")
	}
}

func TestCLIQuote(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "quote", "--name", "Erika Mustermann", "--qty", "2")
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	for _, want := range []string{"An: " + env.cfg.QuoteEmail, "Betreff: Angebotsanfrage AST31", "Anzahl Tische: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, env, "quote", "--format", "mailto")
	if err != nil {
		t.Fatalf("quote --format mailto failed: %v", err)
	}
	if !strings.HasPrefix(out, "mailto:") {
		t.Errorf("expected mailto link, got %q", out)
	}

	if _, err := runCLI(t, env, "quote", "--format", "pdf"); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := runCLI(t, env, "quote", "--email", "nope"); err == nil {
		t.Error("expected error for invalid email")
	}
}

func TestCLICart(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "cart", "--qty", "2")
	if err != nil {
		t.Fatalf("cart failed: %v", err)
	}
	result := decodeJSON(t, out)
	if result["action"] != env.cfg.CartURL {
		t.Errorf("action = %v, want %s", result["action"], env.cfg.CartURL)
	}
}

func TestCLISchema(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "schema")
	if err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	if order, _ := decodeJSON(t, out)["field_order"].([]any); len(order) == 0 {
		t.Error("expected field_order")
	}
}

func TestCLICatalog(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "catalog", "status")
	if err != nil {
		t.Fatalf("catalog status failed: %v", err)
	}
	if decodeJSON(t, out)["source"] != "sample" {
		t.Errorf("expected sample source before import:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "articles.xml")
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<articles>
  <grundtisch key="ast31-lichtgrau-buche-1500" number="900001" price="100.00"/>
</articles>
`
	if err := os.WriteFile(path, []byte(xml), 0600); err != nil {
		t.Fatalf("write xml: %v", err)
	}

	out, err = runCLI(t, env, "catalog", "import", path)
	if err != nil {
		t.Fatalf("catalog import failed: %v", err)
	}
	if decodeJSON(t, out)["imported"] != float64(1) {
		t.Errorf("unexpected import output:\n%s", out)
	}

	out, err = runCLI(t, env, "catalog", "status")
	if err != nil {
		t.Fatalf("catalog status failed: %v", err)
	}
	status := decodeJSON(t, out)
	if status["source"] != "database" || status["stored_articles"] != float64(1) {
		t.Errorf("unexpected status:\n%s", out)
	}
	if _, ok := status["last_import"]; !ok {
		t.Error("expected last_import")
	}

	if _, err := runCLI(t, env, "catalog", "import", "articles.json"); err == nil {
		t.Error("expected error for non-xml path")
	}
}

func TestCLIBrokenCatalogPath(t *testing.T) {
	env := setupTestEnv(t)
	env.cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.xml")

	if _, err := runCLI(t, env, "configure"); err == nil {
		t.Error("expected configure to fail with a missing catalog file")
	}
}
