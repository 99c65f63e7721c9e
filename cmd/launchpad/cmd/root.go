package cmd

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/armadaproject/launchpad/internal/common"
	commonconfig "github.com/armadaproject/launchpad/internal/common/config"
	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad"
	"github.com/armadaproject/launchpad/internal/launchpad/configuration"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

const (
	CustomConfigLocation string = "config"
	DefaultConfigPath    string = "./config/launchpad"
	LogFormat            string = "log-format"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "launchpad",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "launchpad resolves where jobs run and stages the files they need.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString(LogFormat)
			if err != nil {
				return errors.WithStack(err)
			}
			if err := configureLogging(format); err != nil {
				return err
			}
			return errors.WithStack(viper.BindPFlag(CustomConfigLocation, cmd.Flags().Lookup(CustomConfigLocation)))
		},
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.PersistentFlags().String(LogFormat, "cli", "Log format: cli for bare messages, text for timestamped lines")

	cmd.AddCommand(
		resolveCmd(),
		setupCmd(),
		clustersCmd(),
	)

	return cmd
}

func configureLogging(format string) error {
	switch format {
	case "cli":
		common.ConfigureCommandLineLogging()
	case "text":
		common.ConfigureLogging()
	default:
		return errors.WithStack(&launchpaderrors.ErrBadRequest{
			Name:    LogFormat,
			Value:   format,
			Message: "must be one of cli or text",
		})
	}
	return nil
}

func loadConfig() (configuration.LaunchpadConfiguration, error) {
	var config configuration.LaunchpadConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	common.LoadConfig(&config, DefaultConfigPath, userSpecifiedConfigs)

	err := commonconfig.Validate(config)
	if err != nil {
		commonconfig.LogValidationErrors(err)
	}
	return config, err
}

// withService runs f against a Service built from the loaded configuration and closes it afterwards.
func withService(cmd *cobra.Command, f func(ctx *launchpadcontext.Context, s *launchpad.Service) error) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := launchpadcontext.New(cmd.Context(), logrus.NewEntry(logrus.StandardLogger()))
	s, err := launchpad.New(ctx, config)
	if err != nil {
		return err
	}
	defer s.Close()
	defer s.WriteMetrics(ctx)
	return f(ctx, s)
}

// addJobFlags adds the flags describing a job request to flags.
func addJobFlags(flags *pflag.FlagSet) {
	flags.String("job-id", "", "Id of the job; a random id is generated if not set")
	flags.String("job-name", "", "Name of the job")
	flags.StringArray(
		"cluster-tags",
		[]string{},
		"Comma separated tags of one tier of cluster criteria; repeat for each fallback tier, most preferred first")
	flags.StringSlice("command-tags", []string{}, "Tags the command must carry")
	flags.StringSlice("applications", []string{}, "Ids of the applications to set up instead of the command's own")
	flags.String("setup-file", "", "Setup file of the job itself")
	flags.StringSlice("dependencies", []string{}, "Dependency files of the job itself")
	flags.StringSlice("configs", []string{}, "Config files of the job itself")
}

// jobRequestFromFlags builds a job request from the flags added by addJobFlags.
func jobRequestFromFlags(flags *pflag.FlagSet) (*model.JobRequest, error) {
	var err error
	request := &model.JobRequest{}
	if request.Id, err = flags.GetString("job-id"); err != nil {
		return nil, errors.WithStack(err)
	}
	if request.Id == "" {
		request.Id = uuid.New().String()
	}
	if request.Name, err = flags.GetString("job-name"); err != nil {
		return nil, errors.WithStack(err)
	}
	tiers, err := flags.GetStringArray("cluster-tags")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	request.ClusterCriteria = parseClusterCriteria(tiers)
	if request.CommandCriteria, err = flags.GetStringSlice("command-tags"); err != nil {
		return nil, errors.WithStack(err)
	}
	if request.ApplicationIds, err = flags.GetStringSlice("applications"); err != nil {
		return nil, errors.WithStack(err)
	}
	if request.SetupFile, err = flags.GetString("setup-file"); err != nil {
		return nil, errors.WithStack(err)
	}
	if request.Dependencies, err = flags.GetStringSlice("dependencies"); err != nil {
		return nil, errors.WithStack(err)
	}
	if request.Configs, err = flags.GetStringSlice("configs"); err != nil {
		return nil, errors.WithStack(err)
	}
	return request, nil
}

// parseClusterCriteria turns each "a,b,c" flag value into one tier of tags.
// Tags are trimmed; empty tiers are kept so that they are reported as invalid.
func parseClusterCriteria(tiers []string) model.ClusterCriteria {
	criteria := make(model.ClusterCriteria, 0, len(tiers))
	for _, tier := range tiers {
		var tags []string
		for _, tag := range strings.Split(tier, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		criteria = append(criteria, tags)
	}
	return criteria
}
