package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/launchpad/internal/common"
	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/common/logging"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

func TestParseClusterCriteria(t *testing.T) {
	tests := map[string]struct {
		tiers    []string
		expected model.ClusterCriteria
	}{
		"single tier": {tiers: []string{"prod,hadoop"}, expected: model.ClusterCriteria{{"prod", "hadoop"}}},
		"two tiers":   {tiers: []string{"prod,hadoop", "dev"}, expected: model.ClusterCriteria{{"prod", "hadoop"}, {"dev"}}},
		"spaces":      {tiers: []string{" prod , hadoop "}, expected: model.ClusterCriteria{{"prod", "hadoop"}}},
		"empty tier":  {tiers: []string{"prod", ","}, expected: model.ClusterCriteria{{"prod"}, nil}},
		"no tiers":    {tiers: nil, expected: model.ClusterCriteria{}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseClusterCriteria(tc.tiers))
		})
	}
}

func TestJobRequestFromFlags(t *testing.T) {
	cmd := setupCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--job-id", "job1",
		"--cluster-tags", "prod,hadoop",
		"--cluster-tags", "dev",
		"--command-tags", "hive,sql",
		"--dependencies", "s3://bucket/query.sql",
	}))

	request, err := jobRequestFromFlags(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "job1", request.Id)
	assert.Equal(t, model.ClusterCriteria{{"prod", "hadoop"}, {"dev"}}, request.ClusterCriteria)
	assert.Equal(t, []string{"hive", "sql"}, request.CommandCriteria)
	assert.Equal(t, []string{"s3://bucket/query.sql"}, request.Dependencies)
	assert.Empty(t, request.ApplicationIds)
}

func TestJobRequestFromFlags_GeneratesId(t *testing.T) {
	cmd := resolveCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--cluster-tags", "prod"}))

	request, err := jobRequestFromFlags(cmd.Flags())
	require.NoError(t, err)
	_, err = uuid.Parse(request.Id)
	assert.NoError(t, err)
}

func TestSetupTimeout(t *testing.T) {
	tests := map[string]struct {
		args           []string
		expectDeadline bool
	}{
		"no timeout":  {args: nil},
		"zero":        {args: []string{"--timeout", "0s"}},
		"with limit":  {args: []string{"--timeout", "10m"}, expectDeadline: true},
		"short limit": {args: []string{"--timeout", "1ms"}, expectDeadline: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := setupCmd()
			require.NoError(t, cmd.Flags().Parse(tc.args))
			timeout, err := cmd.Flags().GetDuration("timeout")
			require.NoError(t, err)

			parent := launchpadcontext.WithLogField(launchpadcontext.Background(), "job", "job1")
			ctx, cancel := withSetupTimeout(parent, timeout)
			defer cancel()

			assert.Equal(t, parent.Log, ctx.Log)
			deadline, ok := ctx.Deadline()
			assert.Equal(t, tc.expectDeadline, ok)
			if ok {
				assert.WithinDuration(t, time.Now().Add(timeout), deadline, time.Second)
			}
		})
	}
}

func TestSetupTimeout_Expires(t *testing.T) {
	ctx, cancel := withSetupTimeout(launchpadcontext.Background(), time.Millisecond)
	defer cancel()
	select {
	case <-ctx.Done():
		assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("setup context did not expire")
	}
}

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(common.ConfigureCommandLineLogging)
	tests := map[string]struct {
		format    string
		expected  logrus.Formatter
		expectErr bool
	}{
		"cli":     {format: "cli", expected: &logging.CommandLineFormatter{}},
		"text":    {format: "text", expected: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}},
		"unknown": {format: "json", expectErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := configureLogging(tc.format)
			if tc.expectErr {
				var e *launchpaderrors.ErrBadRequest
				assert.True(t, errors.As(err, &e))
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.expected, logrus.StandardLogger().Formatter)
			assert.Equal(t, tc.expected, logrus.StandardLogger().Formatter)
		})
	}
}

func TestClusterQueryFromFlags(t *testing.T) {
	tests := map[string]struct {
		args           []string
		expectJoin     bool
		expectedConds  int
		expectedLimit  int
		expectedOrders int
	}{
		"no filters": {
			args: nil,
		},
		"status and tags": {
			args:          []string{"--status", "up,out_of_service", "--tags", "prod,yarn"},
			expectedConds: 3,
		},
		"time range": {
			args:          []string{"--updated-after", "2022-01-01T00:00:00Z", "--updated-before", "2022-02-01T00:00:00Z"},
			expectedConds: 2,
		},
		"joined": {
			args:          []string{"--tags", "prod", "--command-tags", "hive"},
			expectJoin:    true,
			expectedConds: 4,
		},
		"paged and ordered": {
			args:           []string{"--limit", "10", "--newest-first"},
			expectedLimit:  10,
			expectedOrders: 1,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := clustersCmd()
			require.NoError(t, cmd.Flags().Parse(tc.args))

			query, err := clusterQueryFromFlags(cmd.Flags())
			require.NoError(t, err)
			assert.Equal(t, tc.expectJoin, query.joinCommands)
			assert.Equal(t, tc.expectJoin, query.spec.JoinCommands)
			assert.Len(t, query.spec.Conditions, tc.expectedConds)
			assert.Equal(t, tc.expectedLimit, query.spec.Limit)
			assert.Len(t, query.spec.Order, tc.expectedOrders)
			assert.NoError(t, query.spec.Validate())
		})
	}
}

func TestClusterQueryFromFlags_Invalid(t *testing.T) {
	cmd := clustersCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--status", "RUNNING", "--updated-after", "yesterday", "--limit", "-1"}))

	_, err := clusterQueryFromFlags(cmd.Flags())
	var e *launchpaderrors.ErrBadRequest
	require.True(t, errors.As(err, &e))
	assert.Contains(t, err.Error(), "RUNNING")
	assert.Contains(t, err.Error(), "yesterday")
}

func TestClusterQueryFromFlags_StatusCondition(t *testing.T) {
	cmd := clustersCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--status", "UP"}))

	query, err := clusterQueryFromFlags(cmd.Flags())
	require.NoError(t, err)
	conditions := query.spec.ConditionsOn(specs.ClusterStatus)
	require.Len(t, conditions, 1)
	assert.Equal(t, []string{"UP"}, conditions[0].Value)
}
