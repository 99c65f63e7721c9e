package launchpad

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/configuration"
	"github.com/armadaproject/launchpad/internal/launchpad/jobsetup"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

const catalogTemplate = `
clusters:
  - id: h2prod
    status: UP
    tags: [prod, hadoop]
    commands: [hive]
    setupFile: %[1]s/clusters/h2prod/setup.sh
  - id: h2dev
    status: UP
    tags: [dev]
    commands: [hive]
commands:
  - id: hive
    status: ACTIVE
    tags: [hive]
    executable: hive
    setupFile: %[1]s/commands/hive/setup.sh
    applications: [hadoop]
applications:
  - id: hadoop
    status: ACTIVE
    setupFile: %[1]s/applications/hadoop/setup.sh
    configs: [%[1]s/applications/hadoop/core-site.xml]
`

// newTestConfig writes a catalog whose files live under a temporary directory and returns a configuration using it.
func newTestConfig(t *testing.T) configuration.LaunchpadConfiguration {
	files := t.TempDir()
	for _, f := range []string{
		"clusters/h2prod/setup.sh",
		"commands/hive/setup.sh",
		"applications/hadoop/setup.sh",
		"applications/hadoop/core-site.xml",
	} {
		path := filepath.Join(files, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0o644))
	}
	fixture := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(fmt.Sprintf(catalogTemplate, files)), 0o644))

	return configuration.LaunchpadConfiguration{
		Catalog: configuration.CatalogConfig{
			Type:                 configuration.CatalogTypeMemDb,
			FixturePath:          fixture,
			ApplicationCacheSize: 10,
		},
		FileTransfer: configuration.FileTransferConfig{
			RetryAttempts: 2,
			RetryDelay:    time.Millisecond,
			HTTPTimeout:   time.Second,
		},
		Workflow: configuration.WorkflowConfig{
			DirMode:          0o755,
			FetchConcurrency: 2,
		},
		Metrics: configuration.MetricsConfig{
			TextfilePath: filepath.Join(t.TempDir(), "launchpad.prom"),
		},
	}
}

func TestService_Setup(t *testing.T) {
	config := newTestConfig(t)
	ctx := launchpadcontext.Background()
	s, err := New(ctx, config)
	require.NoError(t, err)
	defer s.Close()

	wd := t.TempDir()
	env, err := s.Setup(ctx, wd, &model.JobRequest{
		Id:              "job1",
		ClusterCriteria: model.ClusterCriteria{{"prod", "hadoop"}, {"dev"}},
		CommandCriteria: []string{"hive"},
	})
	require.NoError(t, err)
	assert.Equal(t, "h2prod", env.Cluster().Id)
	assert.Equal(t, "hive", env.Command().Id)

	script, err := os.ReadFile(filepath.Join(wd, jobsetup.LauncherScriptName))
	require.NoError(t, err)
	expected := "source " + filepath.Join(wd, "applications", "hadoop", "setup", "setup.sh") + ";\n" +
		"source " + filepath.Join(wd, "clusters", "h2prod", "setup", "setup.sh") + ";\n" +
		"source " + filepath.Join(wd, "commands", "hive", "setup", "setup.sh") + ";\n"
	assert.Equal(t, expected, string(script))

	content, err := os.ReadFile(filepath.Join(wd, "applications", "hadoop", "config", "core-site.xml"))
	require.NoError(t, err)
	assert.Equal(t, "applications/hadoop/core-site.xml", string(content))

	s.WriteMetrics(ctx)
	_, err = os.Stat(config.Metrics.TextfilePath)
	assert.NoError(t, err)
}

func TestService_Setup_ResolutionFailureStagesNothing(t *testing.T) {
	ctx := launchpadcontext.Background()
	s, err := New(ctx, newTestConfig(t))
	require.NoError(t, err)
	defer s.Close()

	wd := t.TempDir()
	_, err = s.Setup(ctx, wd, &model.JobRequest{
		Id:              "job1",
		ClusterCriteria: model.ClusterCriteria{{"missing"}},
		CommandCriteria: []string{"hive"},
	})
	var e *launchpaderrors.ErrResolutionFailed
	require.True(t, errors.As(err, &e))
	assert.Equal(t, launchpaderrors.NoClusterMatched, e.Reason)

	entries, err := os.ReadDir(wd)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_Setup_InvalidJobIdStagesNothing(t *testing.T) {
	tests := map[string]struct {
		id string
	}{
		"empty":  {id: ""},
		"nested": {id: "team/job1"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := launchpadcontext.Background()
			s, err := New(ctx, newTestConfig(t))
			require.NoError(t, err)
			defer s.Close()

			wd := t.TempDir()
			_, err = s.Setup(ctx, wd, &model.JobRequest{
				Id:              tc.id,
				ClusterCriteria: model.ClusterCriteria{{"prod", "hadoop"}},
				CommandCriteria: []string{"hive"},
			})
			var e *launchpaderrors.ErrBadRequest
			require.True(t, errors.As(err, &e))
			assert.Equal(t, launchpaderrors.ExitBadRequest, launchpaderrors.ExitCodeFromError(err))

			entries, err := os.ReadDir(wd)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestService_FindClusters(t *testing.T) {
	ctx := launchpadcontext.Background()
	s, err := New(ctx, newTestConfig(t))
	require.NoError(t, err)
	defer s.Close()

	clusters, err := s.FindClusters(ctx, specs.FindClusters("", []model.ClusterStatus{model.ClusterUp}, nil, nil, nil))
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "h2dev", clusters[0].Id)
	assert.Equal(t, "h2prod", clusters[1].Id)

	pairs, err := s.FindClusterCommands(ctx, specs.FindClustersAndCommands([]string{"dev"}, []string{"hive"}))
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "h2dev", pairs[0].Cluster.Id)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := map[string]struct {
		modify func(c *configuration.LaunchpadConfiguration)
	}{
		"unknown catalog type": {
			modify: func(c *configuration.LaunchpadConfiguration) { c.Catalog.Type = "etcd" },
		},
		"missing fixture": {
			modify: func(c *configuration.LaunchpadConfiguration) { c.Catalog.FixturePath = "/does/not/exist.yaml" },
		},
		"unknown task": {
			modify: func(c *configuration.LaunchpadConfiguration) { c.Workflow.Tasks = []string{"network"} },
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			config := newTestConfig(t)
			tc.modify(&config)
			_, err := New(launchpadcontext.Background(), config)
			assert.Error(t, err)
		})
	}
}
