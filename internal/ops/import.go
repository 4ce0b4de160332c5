package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/deskforge/deskcfg/internal/catalog"
	"github.com/deskforge/deskcfg/internal/config"
	"github.com/deskforge/deskcfg/internal/db"
	"github.com/deskforge/deskcfg/internal/errors"
)

// ImportCatalogInput contains parameters for the ImportCatalog operation.
type ImportCatalogInput struct {
	Path string // required, .xml
}

// ImportCatalogOutput contains the result of the ImportCatalog operation.
type ImportCatalogOutput struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Imported int    `json:"imported"`
	Priced   int    `json:"priced"`
}

// ImportCatalog replaces the stored article table with the XML file at Path.
func ImportCatalog(ctx context.Context, database *sql.DB, logger *slog.Logger, input ImportCatalogInput) (*ImportCatalogOutput, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ValidateCatalogPath(input.Path); err != nil {
		return nil, err
	}

	f, err := openFileNoFollowRead(input.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	list, err := catalog.ParseXML(f, logger)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if len(list) == 0 {
		return nil, errors.NewInvalidRequest("article table has no usable entries")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	source, err := filepath.Abs(input.Path)
	if err != nil {
		source = input.Path
	}

	imp := &db.Import{ID: id, Source: source, Count: len(list), ImportedAt: time.Now().Unix()}
	if err := db.ReplaceArticles(ctx, database, list, imp); err != nil {
		return nil, err
	}

	priced := lo.CountBy(list, func(a catalog.Article) bool { return a.Price != nil })

	logger.Info("catalog imported", "id", id, "source", source, "articles", len(list), "priced", priced)
	return &ImportCatalogOutput{ID: id, Source: source, Imported: len(list), Priced: priced}, nil
}

// CatalogSource names where LoadCatalog found its articles.
type CatalogSource string

const (
	SourceDatabase CatalogSource = "database"
	SourceFile     CatalogSource = "file"
	SourceSample   CatalogSource = "sample"
)

// LoadCatalog returns the article lookup: imported rows when the database has
// any, else cfg.CatalogPath, else the embedded sample table. database may be nil.
func LoadCatalog(ctx context.Context, database *sql.DB, cfg *config.Config, logger *slog.Logger) (*catalog.Catalog, CatalogSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if database != nil {
		n, err := db.CountArticles(ctx, database)
		if err != nil {
			return nil, "", err
		}
		if n > 0 {
			list, err := db.ListArticles(ctx, database)
			if err != nil {
				return nil, "", err
			}
			logger.Debug("catalog loaded", "source", SourceDatabase, "articles", len(list))
			return catalog.New(list), SourceDatabase, nil
		}
	}

	if cfg != nil && cfg.CatalogPath != "" {
		list, err := catalog.LoadFile(cfg.CatalogPath, logger)
		if err != nil {
			return nil, "", errors.NewInvalidRequest(err.Error())
		}
		logger.Debug("catalog loaded", "source", SourceFile, "path", cfg.CatalogPath, "articles", len(list))
		return catalog.New(list), SourceFile, nil
	}

	list, err := catalog.Sample()
	if err != nil {
		return nil, "", errors.NewInternal(err)
	}
	logger.Debug("catalog loaded", "source", SourceSample, "articles", len(list))
	return catalog.New(list), SourceSample, nil
}
