package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

func clustersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Lists the clusters in the catalog",
		Long: `Lists the clusters matching all of the given filters. Filters that are not set match everything.

If --command-tags is set, lists the UP clusters carrying all of --tags together with each of their ACTIVE
commands carrying all of the command tags, in the order the resolver would consider them.

Example:

	launchpad clusters --status UP --tags prod --updated-after 2022-01-01T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := clusterQueryFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx *launchpadcontext.Context, s *launchpad.Service) error {
				if query.joinCommands {
					pairs, err := s.FindClusterCommands(ctx, query.spec)
					if err != nil {
						return err
					}
					printClusterCommands(cmd.OutOrStdout(), pairs)
					return nil
				}
				clusters, err := s.FindClusters(ctx, query.spec)
				if err != nil {
					return err
				}
				printClusters(cmd.OutOrStdout(), clusters)
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "SQL LIKE pattern the cluster name must match, e.g. h2%")
	cmd.Flags().StringSlice("status", []string{}, "Statuses to include: UP, OUT_OF_SERVICE or TERMINATED")
	cmd.Flags().StringSlice("tags", []string{}, "Tags the cluster must carry")
	cmd.Flags().StringSlice("command-tags", []string{}, "If set, list cluster and command pairs whose command carries these tags")
	cmd.Flags().String("updated-after", "", "Only clusters updated at or after this RFC3339 time")
	cmd.Flags().String("updated-before", "", "Only clusters updated before this RFC3339 time")
	cmd.Flags().Bool("newest-first", false, "Sort by last update, most recent first")
	cmd.Flags().Int("offset", 0, "Number of results to skip")
	cmd.Flags().Int("limit", 0, "Maximum number of results; 0 means no limit")
	return cmd
}

type clusterQuery struct {
	spec         specs.ClusterSpec
	joinCommands bool
}

// clusterQueryFromFlags builds the spec described by the flags of the clusters command.
// All invalid flag values are reported together.
func clusterQueryFromFlags(flags *pflag.FlagSet) (clusterQuery, error) {
	name, err := flags.GetString("name")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}
	statusNames, err := flags.GetStringSlice("status")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}
	tags, err := flags.GetStringSlice("tags")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}
	commandTags, err := flags.GetStringSlice("command-tags")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}
	updatedAfter, err := flags.GetString("updated-after")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}
	updatedBefore, err := flags.GetString("updated-before")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}
	newestFirst, err := flags.GetBool("newest-first")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}
	offset, err := flags.GetInt("offset")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return clusterQuery{}, errors.WithStack(err)
	}

	var result *multierror.Error
	statuses := make([]model.ClusterStatus, 0, len(statusNames))
	for _, s := range statusNames {
		status, err := model.ParseClusterStatus(s)
		if err != nil {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "status", Value: s, Message: err.Error()})
			continue
		}
		statuses = append(statuses, status)
	}
	minUpdated, err := parseTimeFlag("updated-after", updatedAfter)
	if err != nil {
		result = multierror.Append(result, err)
	}
	maxUpdated, err := parseTimeFlag("updated-before", updatedBefore)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if offset < 0 || limit < 0 {
		result = multierror.Append(result, &launchpaderrors.ErrBadRequest{
			Name:    "offset/limit",
			Value:   fmt.Sprintf("%d/%d", offset, limit),
			Message: "must not be negative",
		})
	}
	if err := result.ErrorOrNil(); err != nil {
		return clusterQuery{}, err
	}

	query := clusterQuery{joinCommands: len(commandTags) > 0}
	if query.joinCommands {
		query.spec = specs.FindClustersAndCommands(tags, commandTags).
			And(specs.FindClusters(name, nil, nil, minUpdated, maxUpdated))
	} else {
		query.spec = specs.FindClusters(name, statuses, tags, minUpdated, maxUpdated)
	}
	if newestFirst {
		query.spec = query.spec.OrderBy(specs.ClusterUpdated, true)
	}
	if offset > 0 || limit > 0 {
		query.spec = query.spec.Page(offset, limit)
	}
	return query, nil
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, &launchpaderrors.ErrBadRequest{Name: name, Value: value, Message: "must be an RFC3339 time"}
	}
	return &t, nil
}

func printClusters(out io.Writer, clusters []*model.Cluster) {
	for _, c := range clusters {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", c.Id, c.Status, strings.Join(c.Tags, ","), strings.Join(c.CommandIds, ","))
	}
}

func printClusterCommands(out io.Writer, pairs []model.ClusterCommand) {
	for _, p := range pairs {
		fmt.Fprintf(out, "%s\t%s\t%d\n", p.Cluster.Id, p.Command.Id, p.Position)
	}
}
