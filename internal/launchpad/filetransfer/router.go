package filetransfer

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Router dispatches each transfer to the Service registered for the source's URI scheme.
// Plain paths are dispatched as the "file" scheme.
type Router struct {
	services map[string]Service
}

// NewRouter returns a Router using the given services, keyed by scheme.
func NewRouter(services map[string]Service) *Router {
	routes := make(map[string]Service, len(services))
	for s, service := range services {
		routes[strings.ToLower(s)] = service
	}
	return &Router{services: routes}
}

func (r *Router) GetFile(ctx context.Context, source, destination string) error {
	s := scheme(source)
	if s == "" {
		s = "file"
	}
	service, ok := r.services[s]
	if !ok {
		return transferError(source, destination, errors.Errorf("no transfer service for scheme %q; supported schemes are %v", s, r.Schemes()))
	}
	return service.GetFile(ctx, source, destination)
}

// Schemes returns the supported schemes in sorted order.
func (r *Router) Schemes() []string {
	schemes := maps.Keys(r.services)
	slices.Sort(schemes)
	return schemes
}
