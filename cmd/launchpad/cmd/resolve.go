package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/slices"
	"github.com/armadaproject/launchpad/internal/launchpad"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Prints the cluster, command and applications a job would be set up with",
		Long: `Resolves a job against the catalog without staging anything.

Example:

	launchpad resolve --cluster-tags prod,hadoop --cluster-tags dev --command-tags hive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			request, err := jobRequestFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			workingDir, err := cmd.Flags().GetString("working-dir")
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx *launchpadcontext.Context, s *launchpad.Service) error {
				env, err := s.Resolve(ctx, workingDir, request)
				if err != nil {
					return err
				}
				printEnvironment(cmd.OutOrStdout(), env)
				return nil
			})
		},
	}
	addJobFlags(cmd.Flags())
	cmd.Flags().String("working-dir", ".", "Working directory the job would be set up in")
	return cmd
}

func printEnvironment(out io.Writer, env *model.JobExecutionEnvironment) {
	job := env.Job()
	cluster := env.Cluster()
	command := env.Command()
	applicationIds := slices.Map(env.Applications(), func(app model.Application) string { return app.Id })
	fmt.Fprintf(out, "job:          %s\n", job.Id)
	fmt.Fprintf(out, "workingDir:   %s\n", env.WorkingDir())
	fmt.Fprintf(out, "cluster:      %s\n", cluster.Id)
	fmt.Fprintf(out, "command:      %s\n", command.Id)
	fmt.Fprintf(out, "executable:   %s\n", command.Executable)
	fmt.Fprintf(out, "applications: %s\n", strings.Join(applicationIds, ","))
}
