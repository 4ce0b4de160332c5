// Package catalog maps (type, compound key) pairs to shop article numbers and prices.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
)

//go:embed article-list.xml
var sampleXML []byte

// Article is one entry of the article table.
type Article struct {
	Type   string `json:"type"`
	Key    string `json:"key"`
	Number string `json:"number"`

	// Price is nil when the article is sold on request.
	Price *Money `json:"price,omitempty"`
}

// Catalog is a read-only article index.
type Catalog struct {
	byType map[string]map[string]Article
	count  int
}

// New indexes articles. Later entries replace earlier ones with the same type and key.
func New(articles []Article) *Catalog {
	c := &Catalog{byType: make(map[string]map[string]Article)}
	for _, a := range articles {
		keys, ok := c.byType[a.Type]
		if !ok {
			keys = make(map[string]Article)
			c.byType[a.Type] = keys
		}
		if _, dup := keys[a.Key]; !dup {
			c.count++
		}
		keys[a.Key] = a
	}
	return c
}

// Lookup returns the article for type and key.
func (c *Catalog) Lookup(typ, key string) (Article, bool) {
	a, ok := c.byType[typ][key]
	return a, ok
}

// Len returns the number of distinct articles.
func (c *Catalog) Len() int {
	return c.count
}

// Articles returns every article sorted by type, then key.
func (c *Catalog) Articles() []Article {
	out := make([]Article, 0, c.count)
	for _, keys := range c.byType {
		for _, a := range keys {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Key < out[j].Key
	})
	return out
}

type xmlEntry struct {
	XMLName xml.Name
	Key     string `xml:"key,attr"`
	Number  string `xml:"number,attr"`
	Price   string `xml:"price,attr"`
}

type xmlDocument struct {
	Entries []xmlEntry `xml:",any"`
}

// ParseXML reads an article table of the form
//
//	<articles><boden key="lichtgrau-1500" number="403853" price="69.90"/></articles>
//
// The element name is the article type. Entries without a number are skipped;
// an unreadable price is dropped, leaving the article on request.
func ParseXML(r io.Reader, logger *slog.Logger) ([]Article, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse article table: %w", err)
	}

	articles := make([]Article, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		typ := e.XMLName.Local
		if e.Number == "" {
			logger.Warn("article without number skipped", "type", typ, "key", e.Key)
			continue
		}

		a := Article{Type: typ, Key: e.Key, Number: e.Number}
		if e.Price != "" {
			p, err := ParseMoney(e.Price)
			if err != nil {
				logger.Warn("unreadable price ignored", "type", typ, "key", e.Key, "price", e.Price, "error", err)
			} else {
				a.Price = &p
			}
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// LoadFile parses the article table at path.
func LoadFile(path string, logger *slog.Logger) ([]Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open article table: %w", err)
	}
	defer f.Close()
	return ParseXML(f, logger)
}

// Sample returns the embedded sample article table.
func Sample() ([]Article, error) {
	return ParseXML(bytes.NewReader(sampleXML), nil)
}
