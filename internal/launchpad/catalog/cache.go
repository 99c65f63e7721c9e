package catalog

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

// ApplicationCache is a Catalog that caches application lookups of an underlying Catalog.
// Applications change rarely, so cached entries are never invalidated; an updated application is only seen once its
// entry has been evicted. All other methods are passed through unchanged.
type ApplicationCache struct {
	Catalog
	applications *lru.Cache
}

func NewApplicationCache(catalog Catalog, size int) (*ApplicationCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &ApplicationCache{
		Catalog:      catalog,
		applications: cache,
	}, nil
}

func (c *ApplicationCache) GetApplications(ctx context.Context, ids []string) ([]*model.Application, error) {
	rv := make([]*model.Application, len(ids))
	var missingIds []string
	var missingIndices []int
	for i, id := range ids {
		if value, ok := c.applications.Get(id); ok {
			copied := value.(*model.Application).DeepCopy()
			rv[i] = &copied
		} else {
			missingIds = append(missingIds, id)
			missingIndices = append(missingIndices, i)
		}
	}
	if len(missingIds) == 0 {
		return rv, nil
	}

	fetched, err := c.Catalog.GetApplications(ctx, missingIds)
	if err != nil {
		return nil, err
	}
	for i, app := range fetched {
		copied := app.DeepCopy()
		c.applications.Add(app.Id, &copied)
		rv[missingIndices[i]] = app
	}
	return rv, nil
}
