package catalog

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/slices"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

const (
	clustersTable     = "clusters"
	commandsTable     = "commands"
	applicationsTable = "applications"

	idIndex     = "id"
	statusIndex = "status"
	tagsIndex   = "tags"
)

// MemDb is an in-memory Catalog.
// Reads run in memdb read transactions and so see a consistent snapshot of the catalog,
// even if the catalog is concurrently updated with Upsert.
type MemDb struct {
	db *memdb.MemDB
}

func NewMemDb() (*MemDb, error) {
	db, err := memdb.NewMemDB(memDbSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &MemDb{db: db}, nil
}

// Upsert inserts or replaces the given entities in a single transaction.
// The catalog stores copies, so callers may modify the arguments afterwards.
func (c *MemDb) Upsert(clusters []*model.Cluster, commands []*model.Command, applications []*model.Application) error {
	txn := c.db.Txn(true)
	defer txn.Abort()
	for _, cluster := range clusters {
		copied := cluster.DeepCopy()
		if err := txn.Insert(clustersTable, &copied); err != nil {
			return errors.WithMessagef(err, "failed to insert cluster %s", cluster.Id)
		}
	}
	for _, command := range commands {
		copied := command.DeepCopy()
		if err := txn.Insert(commandsTable, &copied); err != nil {
			return errors.WithMessagef(err, "failed to insert command %s", command.Id)
		}
	}
	for _, app := range applications {
		copied := app.DeepCopy()
		if err := txn.Insert(applicationsTable, &copied); err != nil {
			return errors.WithMessagef(err, "failed to insert application %s", app.Id)
		}
	}
	txn.Commit()
	return nil
}

func (c *MemDb) FindClusters(_ context.Context, spec specs.ClusterSpec) ([]*model.Cluster, error) {
	if err := validateSpec(spec, false); err != nil {
		return nil, err
	}
	txn := c.db.Txn(false)
	defer txn.Abort()

	candidates, err := candidateClusters(txn, spec)
	if err != nil {
		return nil, err
	}
	var matching []*model.Cluster
	for _, cluster := range candidates {
		if !spec.MatchesCluster(cluster) {
			continue
		}
		// Conditions on command fields restrict clusters to those with at least one matching command.
		if spec.JoinCommands {
			pairs, err := joinCommands(txn, cluster, spec, nil)
			if err != nil {
				return nil, err
			}
			if len(pairs) == 0 {
				continue
			}
		}
		copied := cluster.DeepCopy()
		matching = append(matching, &copied)
	}
	spec.SortClusters(matching)
	start, end := spec.PageBounds(len(matching))
	return matching[start:end], nil
}

func (c *MemDb) FindClusterCommands(_ context.Context, spec specs.ClusterSpec) ([]model.ClusterCommand, error) {
	if err := validateSpec(spec, true); err != nil {
		return nil, err
	}
	txn := c.db.Txn(false)
	defer txn.Abort()

	candidates, err := candidateClusters(txn, spec)
	if err != nil {
		return nil, err
	}
	allowedCommands, err := candidateCommandIds(txn, spec)
	if err != nil {
		return nil, err
	}
	var pairs []model.ClusterCommand
	for _, cluster := range candidates {
		if !spec.MatchesCluster(cluster) {
			continue
		}
		clusterPairs, err := joinCommands(txn, cluster, spec, allowedCommands)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, clusterPairs...)
	}
	spec.SortPairs(pairs)
	start, end := spec.PageBounds(len(pairs))
	pairs = pairs[start:end]

	rv := make([]model.ClusterCommand, len(pairs))
	for i, pair := range pairs {
		cluster := pair.Cluster.DeepCopy()
		command := pair.Command.DeepCopy()
		rv[i] = model.ClusterCommand{Cluster: &cluster, Command: &command, Position: pair.Position}
	}
	return rv, nil
}

func (c *MemDb) GetCluster(_ context.Context, id string) (*model.Cluster, error) {
	txn := c.db.Txn(false)
	defer txn.Abort()
	obj, err := txn.First(clustersTable, idIndex, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, clusterNotFound(id)
	}
	copied := obj.(*model.Cluster).DeepCopy()
	return &copied, nil
}

func (c *MemDb) GetCommand(_ context.Context, id string) (*model.Command, error) {
	txn := c.db.Txn(false)
	defer txn.Abort()
	command, err := getCommandWithTxn(txn, id)
	if err != nil {
		return nil, err
	}
	if command == nil {
		return nil, commandNotFound(id)
	}
	copied := command.DeepCopy()
	return &copied, nil
}

func (c *MemDb) GetApplications(_ context.Context, ids []string) ([]*model.Application, error) {
	txn := c.db.Txn(false)
	defer txn.Abort()
	rv := make([]*model.Application, len(ids))
	for i, id := range ids {
		obj, err := txn.First(applicationsTable, idIndex, id)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if obj == nil {
			return nil, applicationNotFound(id)
		}
		copied := obj.(*model.Application).DeepCopy()
		rv[i] = &copied
	}
	return rv, nil
}

func getCommandWithTxn(txn *memdb.Txn, id string) (*model.Command, error) {
	obj, err := txn.First(commandsTable, idIndex, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, nil
	}
	command, ok := obj.(*model.Command)
	if !ok {
		panic(fmt.Sprintf("expected *Command, but got %T", obj))
	}
	return command, nil
}

// joinCommands returns the pairs of cluster and its associated commands that match spec.
// If allowed is non-nil, only commands in allowed are considered.
// Commands referred to by the cluster but missing from the catalog are skipped.
func joinCommands(txn *memdb.Txn, cluster *model.Cluster, spec specs.ClusterSpec, allowed map[string]bool) ([]model.ClusterCommand, error) {
	var rv []model.ClusterCommand
	seen := make(map[string]bool)
	for position, commandId := range cluster.CommandIds {
		if allowed != nil && !allowed[commandId] {
			continue
		}
		if spec.Distinct && seen[commandId] {
			continue
		}
		command, err := getCommandWithTxn(txn, commandId)
		if err != nil {
			return nil, err
		}
		if command == nil {
			continue
		}
		pair := model.ClusterCommand{Cluster: cluster, Command: command, Position: position}
		if spec.MatchesPair(pair) {
			seen[commandId] = true
			rv = append(rv, pair)
		}
	}
	return rv, nil
}

// candidateClusters returns a superset of the clusters matching spec.
// Every condition that can be answered by an index produces a candidate set and the smallest one is returned.
// If no condition can be answered by an index, all clusters are returned.
func candidateClusters(txn *memdb.Txn, spec specs.ClusterSpec) ([]*model.Cluster, error) {
	var best []*model.Cluster
	found := false
	consider := func(index string, args ...interface{}) error {
		clusters, err := lookupClusters(txn, index, args...)
		if err != nil {
			return err
		}
		if !found || len(clusters) < len(best) {
			best = clusters
			found = true
		}
		return nil
	}
	for _, condition := range spec.Conditions {
		var err error
		switch {
		case condition.Field == specs.ClusterId && condition.Op == specs.Equal:
			err = consider(idIndex, condition.Value)
		case condition.Field == specs.ClusterStatus && condition.Op == specs.Equal:
			err = consider(statusIndex, condition.Value)
		case condition.Field == specs.ClusterStatus && condition.Op == specs.In:
			var union []*model.Cluster
			for _, status := range slices.Unique(condition.Value.([]string)) {
				clusters, lookupErr := lookupClusters(txn, statusIndex, status)
				if lookupErr != nil {
					return nil, lookupErr
				}
				union = append(union, clusters...)
			}
			if !found || len(union) < len(best) {
				best = union
				found = true
			}
		case condition.Field == specs.ClusterTags && condition.Op == specs.Member:
			err = consider(tagsIndex, condition.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	if found {
		return best, nil
	}
	return lookupClusters(txn, idIndex+"_prefix", "")
}

func lookupClusters(txn *memdb.Txn, index string, args ...interface{}) ([]*model.Cluster, error) {
	it, err := txn.Get(clustersTable, index, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var rv []*model.Cluster
	for obj := it.Next(); obj != nil; obj = it.Next() {
		cluster, ok := obj.(*model.Cluster)
		if !ok {
			panic(fmt.Sprintf("expected *Cluster, but got %T", obj))
		}
		rv = append(rv, cluster)
	}
	return rv, nil
}

// candidateCommandIds returns the ids of the commands carrying the least common of the command tags the spec asks for.
// Returns nil if the spec doesn't restrict command tags.
func candidateCommandIds(txn *memdb.Txn, spec specs.ClusterSpec) (map[string]bool, error) {
	var best map[string]bool
	for _, condition := range spec.ConditionsOn(specs.CommandTags) {
		if condition.Op != specs.Member {
			continue
		}
		it, err := txn.Get(commandsTable, tagsIndex, condition.Value)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		ids := make(map[string]bool)
		for obj := it.Next(); obj != nil; obj = it.Next() {
			ids[obj.(*model.Command).Id] = true
		}
		if best == nil || len(ids) < len(best) {
			best = ids
		}
	}
	return best, nil
}

func memDbSchema() *memdb.DBSchema {
	entityIndexes := func(withStatusAndTags bool) map[string]*memdb.IndexSchema {
		indexes := map[string]*memdb.IndexSchema{
			idIndex: {
				Name:    idIndex,
				Unique:  true,
				Indexer: &memdb.StringFieldIndex{Field: "Id"},
			},
		}
		if withStatusAndTags {
			indexes[statusIndex] = &memdb.IndexSchema{
				Name:    statusIndex,
				Unique:  false,
				Indexer: &memdb.StringFieldIndex{Field: "Status"},
			}
			indexes[tagsIndex] = &memdb.IndexSchema{
				Name:         tagsIndex,
				Unique:       false,
				AllowMissing: true,
				Indexer:      &memdb.StringSliceFieldIndex{Field: "Tags"},
			}
		}
		return indexes
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			clustersTable: {
				Name:    clustersTable,
				Indexes: entityIndexes(true),
			},
			commandsTable: {
				Name:    commandsTable,
				Indexes: entityIndexes(true),
			},
			applicationsTable: {
				Name:    applicationsTable,
				Indexes: entityIndexes(false),
			},
		},
	}
}
