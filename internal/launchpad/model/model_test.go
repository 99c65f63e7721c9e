package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClusterStatus(t *testing.T) {
	tests := map[string]struct {
		input       string
		expected    ClusterStatus
		expectError bool
	}{
		"up":             {input: "UP", expected: ClusterUp},
		"lower case":     {input: "out_of_service", expected: ClusterOutOfService},
		"padded":         {input: " terminated ", expected: ClusterTerminated},
		"unknown status": {input: "DOWN", expectError: true},
		"empty":          {input: "", expectError: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			status, err := ParseClusterStatus(tc.input)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestParseCommandStatus(t *testing.T) {
	status, err := ParseCommandStatus("active")
	require.NoError(t, err)
	assert.Equal(t, CommandActive, status)

	_, err = ParseCommandStatus("RUNNING")
	assert.Error(t, err)
}

func TestCluster_CommandPosition(t *testing.T) {
	c := &Cluster{Id: "c1", CommandIds: []string{"hive", "spark"}}
	assert.Equal(t, 0, c.CommandPosition("hive"))
	assert.Equal(t, 1, c.CommandPosition("spark"))
	assert.Equal(t, -1, c.CommandPosition("presto"))
}

func TestIsValidId(t *testing.T) {
	tests := map[string]struct {
		id       string
		expected bool
	}{
		"plain":          {id: "job1", expected: true},
		"uuid":           {id: "3f0c2b1e-7a4d-4f7e-9c55-0f6e8d2a1b3c", expected: true},
		"empty":          {id: ""},
		"blank":          {id: "  "},
		"current dir":    {id: "."},
		"parent dir":     {id: ".."},
		"nested":         {id: "team/job1"},
		"windows nested": {id: `team\job1`},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsValidId(tc.id))
		})
	}
}

func TestJobExecutionEnvironment_IsImmutable(t *testing.T) {
	cluster := &Cluster{Id: "c1", Tags: []string{"prod"}}
	command := &Command{Id: "hive", Configs: []string{"hive-site.xml"}}
	apps := []*Application{{Id: "a1", Dependencies: []string{"d1"}}}
	job := &JobRequest{Id: "j1", ClusterCriteria: ClusterCriteria{{"prod"}}}

	env := NewJobExecutionEnvironment("/tmp/job", job, cluster, command, apps)

	// Mutating the inputs does not leak into the environment
	cluster.Tags[0] = "dev"
	command.Configs[0] = "other.xml"
	apps[0].Dependencies[0] = "d2"
	job.ClusterCriteria[0][0] = "dev"

	assert.Equal(t, []string{"prod"}, env.Cluster().Tags)
	assert.Equal(t, []string{"hive-site.xml"}, env.Command().Configs)
	assert.Equal(t, []string{"d1"}, env.Applications()[0].Dependencies)
	assert.Equal(t, ClusterCriteria{{"prod"}}, env.Job().ClusterCriteria)

	// Mutating what the accessors return does not leak either
	returned := env.Applications()
	returned[0].Id = "changed"
	assert.Equal(t, "a1", env.Applications()[0].Id)
	assert.Equal(t, "/tmp/job", env.WorkingDir())
}
