// Package catalog stores the fleet of clusters, commands and applications that jobs are resolved against.
package catalog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

// Catalog is the read side of the resource catalog.
// Implementations must be safe for concurrent use and must return values the caller is free to modify.
type Catalog interface {
	// FindClusters returns the clusters matching spec, sorted by the spec's orderings and then by id.
	// Conditions on command fields are rejected unless the spec joins commands.
	FindClusters(ctx context.Context, spec specs.ClusterSpec) ([]*model.Cluster, error)
	// FindClusterCommands returns one entry per (cluster, command) pair matching spec.
	// Pairs are sorted by the spec's orderings and then by cluster id, command position and command id.
	FindClusterCommands(ctx context.Context, spec specs.ClusterSpec) ([]model.ClusterCommand, error)
	GetCluster(ctx context.Context, id string) (*model.Cluster, error)
	GetCommand(ctx context.Context, id string) (*model.Command, error)
	// GetApplications returns the applications with the given ids, in the order of ids.
	// Returns *launchpaderrors.ErrNotFound if any id is unknown.
	GetApplications(ctx context.Context, ids []string) ([]*model.Application, error)
}

func validateSpec(spec specs.ClusterSpec, requireJoin bool) error {
	if requireJoin && !spec.JoinCommands {
		return errors.WithStack(&launchpaderrors.ErrBadRequest{
			Name:    "spec",
			Value:   spec.String(),
			Message: "spec must join clusters to commands",
		})
	}
	if err := spec.Validate(); err != nil {
		return errors.WithStack(&launchpaderrors.ErrBadRequest{
			Name:    "spec",
			Value:   spec.String(),
			Message: err.Error(),
		})
	}
	return nil
}

func clusterNotFound(id string) error {
	return errors.WithStack(&launchpaderrors.ErrNotFound{Type: "cluster", Value: id})
}

func commandNotFound(id string) error {
	return errors.WithStack(&launchpaderrors.ErrNotFound{Type: "command", Value: id})
}

func applicationNotFound(id string) error {
	return errors.WithStack(&launchpaderrors.ErrNotFound{Type: "application", Value: id})
}
