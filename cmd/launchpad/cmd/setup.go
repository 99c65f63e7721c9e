package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/launchpad"
	"github.com/armadaproject/launchpad/internal/launchpad/jobsetup"
)

func setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Resolves a job and stages the files it needs into its working directory",
		Long: `Resolves a job against the catalog, then fetches the setup, dependency and config files of its
applications, cluster, command and the job itself into the working directory, and writes the launcher script
sourcing every setup file.

The working directory must already exist. If --timeout is set, setup fails once it has taken longer than that;
files staged up to that point are left in place.

Example:

	launchpad setup --working-dir /tmp/job1 --job-id job1 --cluster-tags prod,hadoop --command-tags hive`,
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
			if workingDir, err = filepath.Abs(workingDir); err != nil {
				return err
			}
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx *launchpadcontext.Context, s *launchpad.Service) error {
				ctx, cancel := withSetupTimeout(ctx, timeout)
				defer cancel()
				env, err := s.Setup(ctx, workingDir, request)
				if err != nil {
					return err
				}
				printEnvironment(cmd.OutOrStdout(), env)
				fmt.Fprintf(cmd.OutOrStdout(), "script:       %s\n", filepath.Join(workingDir, jobsetup.LauncherScriptName))
				return nil
			})
		},
	}
	addJobFlags(cmd.Flags())
	cmd.Flags().String("working-dir", "", "Existing directory to set the job up in")
	_ = cmd.MarkFlagRequired("working-dir")
	cmd.Flags().Duration("timeout", 0, "Maximum wall-clock time for the whole setup, e.g. 10m; 0 means no limit")
	return cmd
}

// withSetupTimeout bounds ctx by timeout. A timeout of zero or less leaves ctx unbounded.
func withSetupTimeout(ctx *launchpadcontext.Context, timeout time.Duration) (*launchpadcontext.Context, func()) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return launchpadcontext.WithTimeout(ctx, timeout)
}
