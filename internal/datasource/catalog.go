package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/datasetstore"
	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/keys"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/executor"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	h3mapper "github.com/mohammed-shakir/bikeways-nearby/internal/mapper/h3"
)

// Catalog loads amenity datasets through the dataset cache and keeps the
// decoded, indexed form for the same TTL as the raw body.
type Catalog struct {
	log     *slog.Logger
	exec    executor.Interface
	store   datasetstore.Store
	mapper   *h3mapper.Mapper
	decoded  *expirable.LRU[string, *Dataset]
	networks *expirable.LRU[string, *BikewayNetwork]
}

// NewCatalog wires the loader; m may be nil to skip spatial indexing. size
// bounds the decoded datasets kept in memory, and separately the decoded
// bikeway networks.
func NewCatalog(log *slog.Logger, exec executor.Interface, store datasetstore.Store, m *h3mapper.Mapper, size int, ttl time.Duration) *Catalog {
	if size <= 0 {
		size = 32
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Catalog{
		log:      log,
		exec:     exec,
		store:    store,
		mapper:   m,
		decoded:  expirable.NewLRU[string, *Dataset](size, nil, ttl),
		networks: expirable.NewLRU[string, *BikewayNetwork](size, nil, ttl),
	}
}

func (c *Catalog) Load(ctx context.Context, src Source) (*Dataset, error) {
	key := keys.Dataset(src.Name, src.URL)
	if ds, ok := c.decoded.Get(key); ok {
		return ds, nil
	}

	body, err := c.store.GetOrLoad(ctx, src.Name, src.URL, func(ctx context.Context) ([]byte, error) {
		return c.exec.Fetch(ctx, src.Name, src.URL, nil)
	})
	if err != nil {
		return nil, err
	}
	entries, err := decodeAmenities(src, body)
	if err != nil {
		// a bad body must not stay cached
		if ierr := c.store.Invalidate(ctx, src.Name, src.URL); ierr != nil {
			c.log.WarnContext(ctx, "dataset invalidate failed", "dataset", src.Name, "err", ierr)
		}
		return nil, err
	}
	ds := c.index(newDataset(src, entries))
	c.decoded.Add(key, ds)
	c.log.DebugContext(ctx, "dataset decoded", "dataset", src.Name, "entries", ds.Len())
	return ds, nil
}

// Invalidate drops src from every cache tier.
func (c *Catalog) Invalidate(ctx context.Context, src Source) error {
	c.decoded.Remove(keys.Dataset(src.Name, src.URL))
	return c.store.Invalidate(ctx, src.Name, src.URL)
}

func (c *Catalog) index(ds *Dataset) *Dataset {
	if c.mapper == nil || ds.Len() == 0 {
		return ds
	}
	ix, err := h3mapper.NewIndex(c.mapper, ds.points)
	if err != nil {
		c.log.Warn("spatial index skipped", "dataset", ds.Source.Name, "err", err)
		return ds
	}
	ds.index = ix
	return ds
}

// Finder returns the entries of one amenity kind inside a polygon.
// Implementations may return entries and an error together when only some
// of their sources failed.
type Finder interface {
	Find(ctx context.Context, poly orb.Polygon) ([]model.ResultEntry, error)
}

// CatalogFinder searches a fixed list of sources in order.
type CatalogFinder struct {
	Catalog *Catalog
	Sources []Source
}

func (f CatalogFinder) Find(ctx context.Context, poly orb.Polygon) ([]model.ResultEntry, error) {
	var (
		out  []model.ResultEntry
		errs []error
	)
	for _, src := range f.Sources {
		ds, err := f.Catalog.Load(ctx, src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		hits, err := ds.Within(poly)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, hits...)
	}
	return out, errors.Join(errs...)
}

// ParkingSources turns a municipality→URL map into sources with Toronto
// first and the rest sorted by name, so list order is stable.
func ParkingSources(urls map[string]string) []Source {
	out := make([]Source, 0, len(urls))
	for _, m := range municipalityOrder(urls) {
		out = append(out, Source{
			Name:         fmt.Sprintf("parking-%s", m),
			Kind:         model.KindParking,
			Municipality: m,
			URL:          urls[m],
		})
	}
	return out
}

func municipalityOrder(urls map[string]string) []string {
	names := make([]string, 0, len(urls))
	for m := range urls {
		names = append(names, m)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == "toronto") != (names[j] == "toronto") {
			return names[i] == "toronto"
		}
		return names[i] < names[j]
	})
	return names
}

func ShopSource(url string) Source {
	return Source{Name: "shops-toronto", Kind: model.KindShop, Municipality: "toronto", URL: url}
}
