package db

import (
	"context"
	"database/sql"

	"github.com/deskforge/deskcfg/internal/catalog"
	"github.com/deskforge/deskcfg/internal/errors"
)

// Import records one catalog import.
type Import struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Count      int    `json:"article_count"`
	ImportedAt int64  `json:"imported_at"`
}

// ReplaceArticles swaps the whole article table for articles and records the
// import. Either everything is written or nothing is.
func ReplaceArticles(ctx context.Context, db *sql.DB, articles []catalog.Article, imp *Import) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return errors.NewInternal(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (type, key, number, price_cents)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(type, key) DO UPDATE SET number = excluded.number, price_cents = excluded.price_cents
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, a.Type, a.Key, a.Number, toNullPrice(a.Price)); err != nil {
			return errors.NewInternal(err)
		}
	}

	if imp != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO imports (id, source, article_count, imported_at)
			VALUES (?, ?, ?, ?)
		`, imp.ID, imp.Source, imp.Count, imp.ImportedAt)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListArticles returns every stored article ordered by type and key.
func ListArticles(ctx context.Context, db *sql.DB) ([]catalog.Article, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT type, key, number, price_cents
		FROM articles
		ORDER BY type, key
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var articles []catalog.Article
	for rows.Next() {
		var (
			a     catalog.Article
			price sql.NullInt64
		)
		if err := rows.Scan(&a.Type, &a.Key, &a.Number, &price); err != nil {
			return nil, errors.NewInternal(err)
		}
		a.Price = fromNullPrice(price)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return articles, nil
}

// CountArticles returns the number of stored articles.
func CountArticles(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// LastImport returns the most recent import record.
func LastImport(ctx context.Context, db *sql.DB) (*Import, error) {
	var imp Import
	err := db.QueryRowContext(ctx, `
		SELECT id, source, article_count, imported_at
		FROM imports
		ORDER BY imported_at DESC, id DESC
		LIMIT 1
	`).Scan(&imp.ID, &imp.Source, &imp.Count, &imp.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("catalog import")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &imp, nil
}

// toNullPrice converts an optional price to a nullable cent amount.
func toNullPrice(p *catalog.Money) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// fromNullPrice converts a nullable cent amount to an optional price.
func fromNullPrice(n sql.NullInt64) *catalog.Money {
	if !n.Valid {
		return nil
	}
	m := catalog.Money(n.Int64)
	return &m
}
