package ops

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/deskforge/deskcfg/internal/articles"
	"github.com/deskforge/deskcfg/internal/errors"
)

// QuoteInput contains parameters for the Quote operation.
type QuoteInput struct {
	Token         string
	TableQuantity int // overrides the token's quantity when non-zero

	Name    string
	Email   string // optional reply address
	Company string
	Message string
}

// QuoteOutput is a ready-to-send quote request.
type QuoteOutput struct {
	Reference string `json:"reference"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	PlainText string `json:"plain_text"`
	Markdown  string `json:"markdown"`
	HTML      string `json:"html"`
	ShareURL  string `json:"share_url"`
	MailTo    string `json:"mailto"`

	Summary articles.Summary `json:"summary"`
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Quote formats the article list of a configuration as a quote request.
// Nothing is sent; the caller hands MailTo or the bodies to a mail client.
func Quote(ctx context.Context, p *Pipeline, input QuoteInput) (*QuoteOutput, error) {
	if input.Email != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			return nil, errors.NewInvalidValue("email", input.Email)
		}
	}

	cfg, err := Configure(ctx, p, ConfigureInput{Token: input.Token, TableQuantity: input.TableQuantity})
	if err != nil {
		return nil, err
	}

	ref, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	q := &QuoteOutput{
		Reference: ref,
		Recipient: p.Config.QuoteEmail,
		Subject:   "Angebotsanfrage AST31 " + ref,
		ShareURL:  cfg.ShareURL,
		Summary:   cfg.Summary,
	}
	q.PlainText = plainQuote(input, cfg.Summary, cfg.ShareURL)
	q.Markdown = markdownQuote(input, cfg.Summary, cfg.ShareURL)

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(q.Markdown), &buf); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("render quote: %w", err))
	}
	q.HTML = buf.String()
	q.MailTo = mailtoLink(q.Recipient, q.Subject, q.PlainText)

	p.Logger.Info("quote prepared", "reference", ref, "items", len(cfg.Summary.Items), "token", cfg.Token)
	return q, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func contactLines(in QuoteInput) []string {
	var lines []string
	for _, kv := range [][2]string{
		{"Name", in.Name},
		{"Firma", in.Company},
		{"E-Mail", in.Email},
	} {
		if v := strings.TrimSpace(kv[1]); v != "" {
			lines = append(lines, kv[0]+": "+v)
		}
	}
	return lines
}

func plainQuote(in QuoteInput, s articles.Summary, shareURL string) string {
	var b strings.Builder
	for _, l := range contactLines(in) {
		b.WriteString(l + "\n")
	}
	if msg := strings.TrimSpace(in.Message); msg != "" {
		b.WriteString("\n" + msg + "\n")
	}
	b.WriteString("\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Menge\tArtikel-Nr.\tBezeichnung\tEinzelpreis")
	for _, it := range s.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.Quantity, it.Code, it.Label, articles.PriceLabel(it.UnitPrice))
	}
	_ = tw.Flush()

	fmt.Fprintf(&b, "\nAnzahl Tische: %d\n", s.TableQuantity)
	fmt.Fprintf(&b, "Gesamt: %s\n", s.TotalLabel())
	fmt.Fprintf(&b, "\nKonfiguration: %s\n", shareURL)
	return b.String()
}

func markdownQuote(in QuoteInput, s articles.Summary, shareURL string) string {
	var b strings.Builder
	b.WriteString("## Angebotsanfrage AST31\n\n")
	for _, l := range contactLines(in) {
		b.WriteString(escapeCell(l) + "  \n")
	}
	if msg := strings.TrimSpace(in.Message); msg != "" {
		b.WriteString("\n" + msg + "\n")
	}

	b.WriteString("\n| Menge | Artikel-Nr. | Bezeichnung | Einzelpreis |\n")
	b.WriteString("|---:|---|---|---:|\n")
	for _, it := range s.Items {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
			it.Quantity, escapeCell(it.Code), escapeCell(it.Label), articles.PriceLabel(it.UnitPrice))
	}

	fmt.Fprintf(&b, "\nAnzahl Tische: **%d**  \n", s.TableQuantity)
	fmt.Fprintf(&b, "Gesamt: **%s**\n", s.TotalLabel())
	fmt.Fprintf(&b, "\n[Konfiguration öffnen](<%s>)\n", shareURL)
	return b.String()
}

// escapeCell keeps user and catalog text from breaking the table markup.
func escapeCell(s string) string {
	r := strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")
	return r.Replace(s)
}

// mailtoLink builds an RFC 6068 link; spaces must be %20, not '+'.
func mailtoLink(to, subject, body string) string {
	esc := func(s string) string {
		return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	}
	return "mailto:" + to + "?subject=" + esc(subject) + "&body=" + esc(body)
}
