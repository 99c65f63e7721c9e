package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

func testClusters() []*model.Cluster {
	return []*model.Cluster{
		{Id: "c1", Name: "h2prod", Status: model.ClusterUp, Tags: []string{"prod", "yarn"}, Updated: time.Unix(100, 0), CommandIds: []string{"hive", "spark"}},
		{Id: "c2", Name: "h2query", Status: model.ClusterUp, Tags: []string{"prod", "presto"}, Updated: time.Unix(200, 0), CommandIds: []string{"presto", "hive"}},
		{Id: "c3", Name: "h2test", Status: model.ClusterOutOfService, Tags: []string{"test", "yarn"}, Updated: time.Unix(300, 0), CommandIds: []string{"hive"}},
		{Id: "c4", Name: "h2dev", Status: model.ClusterTerminated, Tags: nil, Updated: time.Unix(400, 0)},
	}
}

func testCommands() []*model.Command {
	return []*model.Command{
		{Id: "hive", Status: model.CommandActive, Tags: []string{"hive", "sql"}, ApplicationIds: []string{"hadoop", "hive-app"}},
		{Id: "spark", Status: model.CommandDeprecated, Tags: []string{"spark"}},
		{Id: "presto", Status: model.CommandActive, Tags: []string{"presto", "sql"}},
	}
}

func testApplications() []*model.Application {
	return []*model.Application{
		{Id: "hadoop", Status: model.CommandActive, SetupFile: "s3://apps/hadoop/setup.sh"},
		{Id: "hive-app", Status: model.CommandActive, Dependencies: []string{"s3://apps/hive/hive.tar.gz"}},
	}
}

func newTestMemDb(t *testing.T) *MemDb {
	db, err := NewMemDb()
	require.NoError(t, err)
	require.NoError(t, db.Upsert(testClusters(), testCommands(), testApplications()))
	return db
}

func clusterIds(clusters []*model.Cluster) []string {
	rv := make([]string, len(clusters))
	for i, c := range clusters {
		rv[i] = c.Id
	}
	return rv
}

func pairIds(pairs []model.ClusterCommand) []string {
	rv := make([]string, len(pairs))
	for i, p := range pairs {
		rv[i] = p.Cluster.Id + "/" + p.Command.Id
	}
	return rv
}

func TestMemDb_FindClusters(t *testing.T) {
	minUpdated := time.Unix(200, 0)
	maxUpdated := time.Unix(400, 0)
	tests := map[string]struct {
		spec     specs.ClusterSpec
		expected []string
	}{
		"no conditions": {
			spec:     specs.ClusterSpec{},
			expected: []string{"c1", "c2", "c3", "c4"},
		},
		"by name": {
			spec:     specs.FindClusters("h2q%", nil, nil, nil, nil),
			expected: []string{"c2"},
		},
		"by statuses": {
			spec:     specs.FindClusters("", []model.ClusterStatus{model.ClusterOutOfService, model.ClusterTerminated}, nil, nil, nil),
			expected: []string{"c3", "c4"},
		},
		"by tags": {
			spec:     specs.FindClusters("", nil, []string{"prod"}, nil, nil),
			expected: []string{"c1", "c2"},
		},
		"by all tags": {
			spec:     specs.FindClusters("", nil, []string{"prod", "yarn"}, nil, nil),
			expected: []string{"c1"},
		},
		"by unknown tag": {
			spec:     specs.FindClusters("", nil, []string{"gpu"}, nil, nil),
			expected: nil,
		},
		"by time window": {
			spec:     specs.FindClusters("", nil, nil, &minUpdated, &maxUpdated),
			expected: []string{"c2", "c3"},
		},
		"ordered by updated descending": {
			spec:     specs.FindClusters("", nil, nil, nil, nil).OrderBy(specs.ClusterUpdated, true),
			expected: []string{"c4", "c3", "c2", "c1"},
		},
		"paged": {
			spec:     specs.ClusterSpec{}.Page(1, 2),
			expected: []string{"c2", "c3"},
		},
		"with an active command carrying a tag": {
			spec:     specs.FindClustersAndCommands(nil, []string{"presto"}),
			expected: []string{"c2"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			db := newTestMemDb(t)
			clusters, err := db.FindClusters(context.Background(), tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, nilIfEmpty(clusterIds(clusters)))
		})
	}
}

func TestMemDb_FindClusterCommands(t *testing.T) {
	tests := map[string]struct {
		spec     specs.ClusterSpec
		expected []string
	}{
		"no tags": {
			spec:     specs.FindClustersAndCommands(nil, nil),
			expected: []string{"c1/hive", "c2/presto", "c2/hive"},
		},
		"cluster tags": {
			spec:     specs.FindClustersAndCommands([]string{"yarn"}, nil),
			expected: []string{"c1/hive"},
		},
		"command tags": {
			spec:     specs.FindClustersAndCommands([]string{"prod"}, []string{"sql"}),
			expected: []string{"c1/hive", "c2/presto", "c2/hive"},
		},
		"cluster and command tags": {
			spec:     specs.FindClustersAndCommands([]string{"prod"}, []string{"hive"}),
			expected: []string{"c1/hive", "c2/hive"},
		},
		"deprecated command is never returned": {
			spec:     specs.FindClustersAndCommands(nil, []string{"spark"}),
			expected: nil,
		},
		"cluster out of service is never returned": {
			spec:     specs.FindClustersAndCommands([]string{"test"}, nil),
			expected: nil,
		},
		"ordered by command position": {
			spec:     specs.FindClustersAndCommands(nil, nil).OrderBy(specs.CommandPosition, false),
			expected: []string{"c1/hive", "c2/presto", "c2/hive"},
		},
		"paged": {
			spec:     specs.FindClustersAndCommands(nil, nil).Page(1, 1),
			expected: []string{"c2/presto"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			db := newTestMemDb(t)
			pairs, err := db.FindClusterCommands(context.Background(), tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, nilIfEmpty(pairIds(pairs)))
		})
	}
}

func TestMemDb_FindClusterCommands_Position(t *testing.T) {
	db := newTestMemDb(t)
	pairs, err := db.FindClusterCommands(context.Background(), specs.FindClustersAndCommands([]string{"presto"}, nil))
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "presto", pairs[0].Command.Id)
	assert.Equal(t, 0, pairs[0].Position)
	assert.Equal(t, "hive", pairs[1].Command.Id)
	assert.Equal(t, 1, pairs[1].Position)
}

func TestMemDb_FindClusterCommands_Distinct(t *testing.T) {
	db, err := NewMemDb()
	require.NoError(t, err)
	cluster := &model.Cluster{Id: "c1", Status: model.ClusterUp, CommandIds: []string{"hive", "hive"}}
	command := &model.Command{Id: "hive", Status: model.CommandActive}
	require.NoError(t, db.Upsert([]*model.Cluster{cluster}, []*model.Command{command}, nil))

	pairs, err := db.FindClusterCommands(context.Background(), specs.FindClustersAndCommands(nil, nil))
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 0, pairs[0].Position)

	notDistinct := specs.FindClustersAndCommands(nil, nil)
	notDistinct.Distinct = false
	pairs, err = db.FindClusterCommands(context.Background(), notDistinct)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
}

func TestMemDb_InvalidSpecs(t *testing.T) {
	db := newTestMemDb(t)

	_, err := db.FindClusterCommands(context.Background(), specs.FindClusters("", nil, []string{"prod"}, nil, nil))
	var e *launchpaderrors.ErrBadRequest
	assert.True(t, errors.As(err, &e))

	withoutJoin := specs.ClusterSpec{}.Where(specs.Condition{Field: specs.CommandStatus, Op: specs.Equal, Value: "ACTIVE"})
	_, err = db.FindClusters(context.Background(), withoutJoin)
	assert.True(t, errors.As(err, &e))
}

func TestMemDb_Get(t *testing.T) {
	db := newTestMemDb(t)
	ctx := context.Background()

	cluster, err := db.GetCluster(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "h2query", cluster.Name)

	command, err := db.GetCommand(ctx, "hive")
	require.NoError(t, err)
	assert.Equal(t, []string{"hadoop", "hive-app"}, command.ApplicationIds)

	apps, err := db.GetApplications(ctx, []string{"hive-app", "hadoop"})
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "hive-app", apps[0].Id)
	assert.Equal(t, "hadoop", apps[1].Id)

	var notFound *launchpaderrors.ErrNotFound
	_, err = db.GetCluster(ctx, "missing")
	assert.True(t, errors.As(err, &notFound))
	_, err = db.GetCommand(ctx, "missing")
	assert.True(t, errors.As(err, &notFound))
	_, err = db.GetApplications(ctx, []string{"hadoop", "missing"})
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Value)
}

func TestMemDb_ReturnsCopies(t *testing.T) {
	db := newTestMemDb(t)
	ctx := context.Background()

	cluster, err := db.GetCluster(ctx, "c1")
	require.NoError(t, err)
	cluster.Tags[0] = "dev"

	clusters, err := db.FindClusters(ctx, specs.FindClusters("", nil, []string{"prod"}, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, clusterIds(clusters))
}

func TestMemDb_UpsertReplaces(t *testing.T) {
	db := newTestMemDb(t)
	ctx := context.Background()

	updated := &model.Cluster{Id: "c1", Status: model.ClusterOutOfService, Tags: []string{"prod"}}
	require.NoError(t, db.Upsert([]*model.Cluster{updated}, nil, nil))

	clusters, err := db.FindClusters(ctx, specs.FindClusters("", []model.ClusterStatus{model.ClusterUp}, nil, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, clusterIds(clusters))

	deleteCluster(t, db, "c2")
	deleteCluster(t, db, "missing")
	all, err := db.FindClusters(ctx, specs.ClusterSpec{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3", "c4"}, clusterIds(all))
}

func deleteCluster(t *testing.T, db *MemDb, id string) {
	txn := db.db.Txn(true)
	defer txn.Abort()
	_, err := txn.DeleteAll(clustersTable, idIndex, id)
	require.NoError(t, err)
	txn.Commit()
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
