// Package codec maps a field selection plus table quantity to a compact URL
// token and back. Old links in the compressed plain-text format still decode.
package codec

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/deskforge/deskcfg/internal/errors"
	"github.com/deskforge/deskcfg/internal/schema"
)

// Alphabet is the 64-symbol token alphabet; a symbol's index is its digit value.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// MaxTableQuantity is the largest encodable table quantity.
const MaxTableQuantity = 99

// legacySeparator joins values in the old link format.
const legacySeparator = "|"

// Kind tells how a token was read.
type Kind int

const (
	// Unrecognized tokens contribute no values.
	Unrecognized Kind = iota
	StrictToken
	LegacyToken
)

func (k Kind) String() string {
	switch k {
	case StrictToken:
		return "strict"
	case LegacyToken:
		return "legacy"
	}
	return "unrecognized"
}

// MarshalText renders the kind name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText reads a kind name; unknown names are Unrecognized.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "strict":
		*k = StrictToken
	case "legacy":
		*k = LegacyToken
	default:
		*k = Unrecognized
	}
	return nil
}

// Decoded is the outcome of reading a token.
type Decoded struct {
	Kind          Kind          `json:"kind"`
	Values        schema.Values `json:"values,omitempty"`
	TableQuantity int           `json:"table_quantity"`
}

// Codec encodes against the field order of one schema.
type Codec struct {
	schema  *schema.Schema
	order   []string
	radices []uint64
	limit   uint64
}

// New builds a codec over s.FieldOrder with the table quantity as the last digit.
// It fails when the combined radix does not fit in 64 bits.
func New(s *schema.Schema) (*Codec, error) {
	c := &Codec{schema: s, order: s.FieldOrder, limit: 1}
	for _, f := range s.FieldOrder {
		c.radices = append(c.radices, uint64(len(s.OptionsFor(f))))
	}
	c.radices = append(c.radices, MaxTableQuantity)

	for _, r := range c.radices {
		hi, lo := bits.Mul64(c.limit, r)
		if hi != 0 {
			return nil, errors.NewInvalidSchema("field domains too large for a 64-bit token")
		}
		c.limit = lo
	}
	return c, nil
}

// Capacity is the number of distinct tokens, i.e. the product of all radices.
func (c *Codec) Capacity() uint64 {
	return c.limit
}

// Encode renders v and qty as a token. Every field must hold a valid option.
func (c *Codec) Encode(v schema.Values, qty int) (string, error) {
	if qty < 1 || qty > MaxTableQuantity {
		return "", errors.NewInvalidValue("table_quantity", fmt.Sprint(qty))
	}

	digits := make([]uint64, 0, len(c.radices))
	for _, f := range c.order {
		idx := indexOf(c.schema.OptionIDs(f), v[f])
		if idx < 0 {
			return "", errors.NewInvalidValue(f, v[f])
		}
		digits = append(digits, uint64(idx))
	}
	digits = append(digits, uint64(qty-1))

	// The first field is the least significant digit
	var n uint64
	for i := len(digits) - 1; i >= 0; i-- {
		n = n*c.radices[i] + digits[i]
	}
	return render(n), nil
}

// Decode reads a strict token, then an old-format link. Anything else is
// Unrecognized with quantity 1; the values are not normalized.
func (c *Codec) Decode(token string) Decoded {
	if token == "" {
		return Decoded{Kind: Unrecognized, TableQuantity: 1}
	}
	if d, ok := c.decodeStrict(token); ok {
		return d
	}
	if d, ok := c.decodeLegacy(token); ok {
		return d
	}
	return Decoded{Kind: Unrecognized, TableQuantity: 1}
}

func (c *Codec) decodeStrict(token string) (Decoded, bool) {
	if len(token) > 1 && token[0] == Alphabet[0] {
		return Decoded{}, false
	}

	var n uint64
	for i := 0; i < len(token); i++ {
		d := strings.IndexByte(Alphabet, token[i])
		if d < 0 {
			return Decoded{}, false
		}
		if n > (math.MaxUint64-uint64(d))/64 {
			return Decoded{}, false
		}
		n = n*64 + uint64(d)
	}
	if n >= c.limit {
		return Decoded{}, false
	}

	values := make(schema.Values, len(c.order))
	for i, f := range c.order {
		idx := n % c.radices[i]
		n /= c.radices[i]
		values[f] = c.schema.OptionIDs(f)[idx]
	}
	qty := int(n%MaxTableQuantity) + 1

	return Decoded{Kind: StrictToken, Values: values, TableQuantity: qty}, true
}

func (c *Codec) decodeLegacy(token string) (Decoded, bool) {
	plain, err := decompressURI(token)
	if err != nil || plain == "" {
		return Decoded{}, false
	}

	parts := strings.Split(plain, legacySeparator)
	values := make(schema.Values)
	for i, f := range c.schema.LegacyOrder {
		if i >= len(parts) || parts[i] == "" {
			continue
		}
		if id, ok := c.schema.Resolve(f, parts[i]); ok {
			values[f] = id
		}
	}
	if len(values) == 0 {
		return Decoded{}, false
	}
	return Decoded{Kind: LegacyToken, Values: values, TableQuantity: 1}, true
}

// EncodeLegacy writes v in the old compressed plain-text format.
// Unset fields are written empty.
func (c *Codec) EncodeLegacy(v schema.Values) string {
	parts := make([]string, len(c.schema.LegacyOrder))
	for i, f := range c.schema.LegacyOrder {
		parts[i] = v[f]
	}
	return compressURI(strings.Join(parts, legacySeparator))
}

func render(n uint64) string {
	if n == 0 {
		return Alphabet[:1]
	}
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = Alphabet[n%64]
		n /= 64
	}
	return string(buf[i:])
}

func indexOf(options []string, v string) int {
	for i, o := range options {
		if o == v {
			return i
		}
	}
	return -1
}
