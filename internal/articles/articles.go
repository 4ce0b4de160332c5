// Package articles derives the orderable article list of a normalized configuration.
package articles

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strconv"

	"github.com/samber/lo"

	"github.com/deskforge/deskcfg/internal/catalog"
	"github.com/deskforge/deskcfg/internal/layers"
	"github.com/deskforge/deskcfg/internal/rules"
	"github.com/deskforge/deskcfg/internal/schema"
)

// Article types of the catalog, in list order.
const (
	TypeBaseTable      = "grundtisch"
	TypeSidePanel      = "seitenblende"
	TypeSuperstructure = "aufbau"
	TypeShelf          = "boden"
	TypePegboard       = "platte"
	TypeContainer      = "container"
	TypeRail           = "laufschiene"
	TypeShelfBoard     = "ablagebord"
)

// Lookup finds catalog articles by type and compound key.
type Lookup interface {
	Lookup(typ, key string) (catalog.Article, bool)
}

// LineItem is one row of the article list.
type LineItem struct {
	Group     string         `json:"group"`
	Label     string         `json:"label"`
	Code      string         `json:"code"`
	Quantity  int            `json:"quantity"`
	UnitPrice *catalog.Money `json:"unit_price,omitempty"`

	// Slots lists the physical shelf positions when the shelves are remapped.
	Slots []string `json:"slots,omitempty"`

	Link string `json:"link,omitempty"`
	Icon string `json:"icon,omitempty"`
}

// Options configures shop links.
type Options struct {
	// ShopSearchURL is prefixed to the escaped article number.
	ShopSearchURL string
	// ImageBase is the folder holding icons/{code}.png.
	ImageBase string
}

// Builder maps configurations to line items.
type Builder struct {
	schema  *schema.Schema
	catalog Lookup
	opts    Options
	logger  *slog.Logger
}

// NewBuilder creates a Builder. A nil logger uses slog.Default().
func NewBuilder(s *schema.Schema, c Lookup, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ImageBase == "" {
		opts.ImageBase = s.ImageBase
	}
	return &Builder{schema: s, catalog: c, opts: opts, logger: logger}
}

// Build returns the line items of n in fixed group order. Components whose
// quantity is not positive or whose article is missing are left out.
func (b *Builder) Build(n rules.Normalized) []LineItem {
	v := n.Values
	width := v[schema.FieldWidth]
	color := v[schema.FieldColor]
	label := func(field string) string { return b.schema.Label(field, v[field]) }

	var items []LineItem
	add := func(typ, key, text string, qty int, slots []string) {
		if qty <= 0 {
			return
		}
		a, ok := b.catalog.Lookup(typ, key)
		if !ok {
			b.logger.Debug("no article for component", "type", typ, "key", key)
			return
		}
		items = append(items, LineItem{
			Group:     typ,
			Label:     text,
			Code:      a.Number,
			Quantity:  qty,
			UnitPrice: a.Price,
			Slots:     slots,
			Link:      b.link(a.Number),
			Icon:      path.Join(b.opts.ImageBase, "icons", a.Number+".png"),
		})
	}

	add(TypeBaseTable,
		fmt.Sprintf("%s-%s-%s-%s", v[schema.FieldFrame], color, v[schema.FieldTabletop], width),
		fmt.Sprintf("Grundtisch %s, %s, %s, %s", label(schema.FieldFrame), label(schema.FieldColor), label(schema.FieldTabletop), label(schema.FieldWidth)),
		1, nil)

	sideColor := layers.ResolveColor(v, schema.FieldSidePanelColor)
	add(TypeSidePanel, sideColor,
		fmt.Sprintf("Seitenblende (%s)", b.schema.Label(schema.FieldColor, sideColor)),
		sideCount(v[schema.FieldSidePanel]), nil)

	if sup := v[schema.FieldSuperstructure]; sup != schema.None {
		add(TypeSuperstructure, sup, "Aufbau "+label(schema.FieldSuperstructure), 1, nil)
	}

	add(TypeShelf, color+"-"+width,
		fmt.Sprintf("Boden (%s)", label(schema.FieldColor)),
		count(v[schema.FieldShelfCount]), n.Slots())

	add(TypePegboard, color+"-"+width,
		fmt.Sprintf("Lochrasterplatte (%s)", label(schema.FieldColor)),
		count(v[schema.FieldPegboardCount]), nil)

	containerColor := layers.ResolveColor(v, schema.FieldContainerColor)
	add(TypeContainer, color+"-"+containerColor,
		fmt.Sprintf("Container (%s)", b.schema.Label(schema.FieldColor, containerColor)),
		sideCount(v[schema.FieldContainerPosition]), nil)

	add(TypeRail, width, "Laufschiene", count(v[schema.FieldRailCount]), nil)

	if board := v[schema.FieldShelfBoard]; board != schema.None {
		add(TypeShelfBoard, board+"-"+width, fmt.Sprintf("Ablagebord (%s)", label(schema.FieldShelfBoard)), 1, nil)
	}

	return items
}

func (b *Builder) link(code string) string {
	if b.opts.ShopSearchURL == "" {
		return ""
	}
	return b.opts.ShopSearchURL + url.QueryEscape(code)
}

// sideCount is the number of units a position places.
func sideCount(position string) int {
	switch position {
	case schema.Left, schema.Right:
		return 1
	case schema.LeftRight:
		return 2
	}
	return 0
}

// count reads a numeric option. Unreadable values count as zero.
func count(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Summary is the priced article list for a number of identical tables.
type Summary struct {
	Items         []LineItem `json:"items"`
	TableQuantity int        `json:"table_quantity"`

	// HasMissingPrice is set when any item is sold on request; the totals are then nil.
	HasMissingPrice bool           `json:"has_missing_price"`
	UnitTotal       *catalog.Money `json:"unit_total,omitempty"`
	OrderTotal      *catalog.Money `json:"order_total,omitempty"`
}

// PriceOnRequest is shown instead of a total when a price is missing.
const PriceOnRequest = "Preis auf Anfrage"

// PriceLabel renders a price in euros, or PriceOnRequest when it is missing.
func PriceLabel(m *catalog.Money) string {
	if m == nil {
		return PriceOnRequest
	}
	return m.String() + " €"
}

// TotalLabel renders the order total, or PriceOnRequest.
func (s Summary) TotalLabel() string {
	if s.HasMissingPrice {
		return PriceOnRequest
	}
	return PriceLabel(s.OrderTotal)
}

// Summarize totals items for tableQty tables. No partial sum is reported when
// any price is missing.
func Summarize(items []LineItem, tableQty int) Summary {
	tableQty = max(tableQty, 1)
	s := Summary{Items: items, TableQuantity: tableQty}

	if lo.SomeBy(items, func(it LineItem) bool { return it.UnitPrice == nil }) {
		s.HasMissingPrice = true
		return s
	}

	unit := lo.SumBy(items, func(it LineItem) catalog.Money { return it.UnitPrice.Times(it.Quantity) })
	order := unit.Times(tableQty)
	s.UnitTotal = &unit
	s.OrderTotal = &order
	return s
}

// CartLine is one (articleId, quantity) pair of the cart hand-off.
type CartLine struct {
	ArticleID string `json:"article_id"`
	Quantity  int    `json:"quantity"`
}

// CartLines scales every item by the table quantity.
func CartLines(items []LineItem, tableQty int) []CartLine {
	tableQty = max(tableQty, 1)
	return lo.Map(items, func(it LineItem, _ int) CartLine {
		return CartLine{ArticleID: it.Code, Quantity: it.Quantity * tableQty}
	})
}
