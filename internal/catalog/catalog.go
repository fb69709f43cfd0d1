package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/drstein77/storefront/internal/apiclient"
	"github.com/drstein77/storefront/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoResults means a search matched nothing.
var ErrNoResults = errors.New("no products found")

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Source is the part of the API client the catalog needs.
type Source interface {
	Products(ctx context.Context) ([]models.Product, error)
	Search(ctx context.Context, value string) ([]models.Product, error)
}

type Catalog struct {
	source Source
	cache  Cache
	log    Log
	sfg    singleflight.Group
}

// New builds a catalog. cache may be nil.
func New(source Source, cache Cache, log Log) *Catalog {
	return &Catalog{
		source: source,
		cache:  cache,
		log:    log,
	}
}

// Products returns the full product list. Concurrent callers share one fetch.
func (c *Catalog) Products(ctx context.Context) ([]models.Product, error) {
	v, err, _ := c.sfg.Do(productsKey, func() (interface{}, error) {
		if c.cache != nil {
			products, err := c.cache.Get(ctx)
			if err == nil {
				return products, nil
			}
			if !errors.Is(err, ErrCacheMiss) {
				c.log.Error("catalog cache get", zap.Error(err))
			}
		}

		products, err := c.source.Products(ctx)
		if err != nil {
			return nil, err
		}

		if c.cache != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := c.cache.Set(ctx, products); err != nil {
					c.log.Error("catalog cache set", zap.Error(err))
				}
			}()
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Product), nil
}

// Search filters the catalog by query. An empty query lists everything.
func (c *Catalog) Search(ctx context.Context, query string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.Products(ctx)
	}

	products, err := c.source.Search(ctx, query)
	if errors.Is(err, apiclient.ErrNotFound) {
		return nil, ErrNoResults
	}
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNoResults
	}
	return products, nil
}
