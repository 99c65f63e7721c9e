// Package resolver picks the cluster and command a job runs on.
//
// A job's cluster criteria is an ordered list of tiers of tags. Tiers are tried in order and the first tier for
// which some UP cluster carrying all of the tier's tags runs an ACTIVE command carrying all of the job's command tags
// wins. Within a tier, ties are broken by lowest cluster id, then by the command's position in that cluster's command
// list, then by lowest command id.
package resolver

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/common/slices"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/metrics"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

type Resolver struct {
	catalog catalog.Catalog
	metrics *metrics.Metrics
}

func New(c catalog.Catalog) *Resolver {
	return &Resolver{
		catalog: c,
		metrics: metrics.Get(),
	}
}

// Resolve returns the cluster and command chosen for the given criteria and command tags.
// Returns *launchpaderrors.ErrBadRequest if the criteria is malformed and *launchpaderrors.ErrResolutionFailed if no
// tier matches.
func (r *Resolver) Resolve(
	ctx *launchpadcontext.Context,
	criteria model.ClusterCriteria,
	commandTags []string,
) (*model.Cluster, *model.Command, error) {
	pair, tier, err := r.resolve(ctx, criteria, commandTags)
	r.recordResolution(tier, err)
	if err != nil {
		return nil, nil, err
	}
	ctx.Log.WithFields(logrus.Fields{
		"cluster": pair.Cluster.Id,
		"command": pair.Command.Id,
		"tier":    tier,
	}).Info("resolved cluster and command")
	return pair.Cluster, pair.Command, nil
}

func (r *Resolver) resolve(
	ctx *launchpadcontext.Context,
	criteria model.ClusterCriteria,
	commandTags []string,
) (model.ClusterCommand, int, error) {
	if err := ValidateCriteria(criteria); err != nil {
		return model.ClusterCommand{}, -1, err
	}
	firstTierWithClusters := -1
	for i, tier := range criteria {
		log := ctx.Log.WithField("tier", i)

		clusters, err := r.catalog.FindClusters(ctx, specs.FindClusters("", []model.ClusterStatus{model.ClusterUp}, tier, nil, nil))
		if err != nil {
			return model.ClusterCommand{}, i, errors.WithMessagef(err, "failed to find clusters for criteria tier %d", i)
		}
		if len(clusters) == 0 {
			log.Debugf("no cluster matches tags %v", tier)
			continue
		}
		if firstTierWithClusters == -1 {
			firstTierWithClusters = i
		}

		pairs, err := r.catalog.FindClusterCommands(ctx, specs.FindClustersAndCommands(tier, commandTags))
		if err != nil {
			return model.ClusterCommand{}, i, errors.WithMessagef(err, "failed to find commands for criteria tier %d", i)
		}
		if len(pairs) == 0 {
			log.Debugf("%d clusters match tags %v but none runs a command matching tags %v", len(clusters), tier, commandTags)
			continue
		}
		return pick(pairs), i, nil
	}

	if firstTierWithClusters == -1 {
		return model.ClusterCommand{}, -1, errors.WithStack(&launchpaderrors.ErrResolutionFailed{
			Reason:         launchpaderrors.NoClusterMatched,
			Tier:           -1,
			TiersEvaluated: len(criteria),
		})
	}
	return model.ClusterCommand{}, firstTierWithClusters, errors.WithStack(&launchpaderrors.ErrResolutionFailed{
		Reason:         launchpaderrors.NoCommandMatched,
		Tier:           firstTierWithClusters,
		TiersEvaluated: len(criteria),
		Message:        fmt.Sprintf("command tags %v", commandTags),
	})
}

// pick returns the pair with the lowest cluster id, then the lowest command position, then the lowest command id.
func pick(pairs []model.ClusterCommand) model.ClusterCommand {
	best := pairs[0]
	for _, pair := range pairs[1:] {
		if less(pair, best) {
			best = pair
		}
	}
	return best
}

func less(a, b model.ClusterCommand) bool {
	if a.Cluster.Id != b.Cluster.Id {
		return a.Cluster.Id < b.Cluster.Id
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.Command.Id < b.Command.Id
}

// ValidateCriteria returns an error if criteria has no tiers or if any tier has no non-blank tag.
// All malformed tiers are reported together.
func ValidateCriteria(criteria model.ClusterCriteria) error {
	if len(criteria) == 0 {
		return errors.WithStack(&launchpaderrors.ErrBadRequest{
			Name:    "clusterCriteria",
			Value:   "[]",
			Message: "at least one tier of cluster tags is required",
		})
	}
	var result *multierror.Error
	for i, tier := range criteria {
		if len(slices.Filter(tier, isNonBlank)) == 0 {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{
				Name:    fmt.Sprintf("clusterCriteria[%d]", i),
				Value:   strings.Join(tier, ","),
				Message: "tier must contain at least one non-blank tag",
			})
		}
	}
	return result.ErrorOrNil()
}

func isNonBlank(tag string) bool {
	return strings.TrimSpace(tag) != ""
}

func (r *Resolver) recordResolution(tier int, err error) {
	if err == nil {
		r.metrics.RecordResolution(metrics.ResolutionSucceeded, tier)
		return
	}
	var e *launchpaderrors.ErrResolutionFailed
	if !errors.As(err, &e) {
		r.metrics.RecordResolution(metrics.ResolutionError, tier)
	} else if e.Reason == launchpaderrors.NoClusterMatched {
		r.metrics.RecordResolution(metrics.ResolutionNoClusterMatched, tier)
	} else {
		r.metrics.RecordResolution(metrics.ResolutionNoCommandMatched, tier)
	}
}
