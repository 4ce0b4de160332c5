package ops

import (
	"context"
	"strconv"

	"github.com/deskforge/deskcfg/internal/articles"
)

// CartInput contains parameters for the Cart operation.
type CartInput struct {
	Token         string
	TableQuantity int // overrides the token's quantity when non-zero
}

// FormField is one name/value pair of the cart form, in posting order.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CartOutput is the hand-off to the shop cart.
type CartOutput struct {
	Action string              `json:"action"`
	Lines  []articles.CartLine `json:"lines"`
	Fields []FormField         `json:"fields"`
}

// Cart returns the cart endpoint and the (articleId, quantity) pairs of a
// configuration, multiplied by the table quantity.
func Cart(ctx context.Context, p *Pipeline, input CartInput) (*CartOutput, error) {
	cfg, err := Configure(ctx, p, ConfigureInput{Token: input.Token, TableQuantity: input.TableQuantity})
	if err != nil {
		return nil, err
	}

	lines := articles.CartLines(cfg.Summary.Items, cfg.TableQuantity)
	fields := make([]FormField, 0, 2*len(lines))
	for _, l := range lines {
		fields = append(fields,
			FormField{Name: "articleId", Value: l.ArticleID},
			FormField{Name: "quantity", Value: strconv.Itoa(l.Quantity)},
		)
	}
	return &CartOutput{Action: p.Config.CartURL, Lines: lines, Fields: fields}, nil
}
