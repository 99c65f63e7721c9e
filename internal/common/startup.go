package common

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	commonconfig "github.com/armadaproject/launchpad/internal/common/config"
	"github.com/armadaproject/launchpad/internal/common/logging"
)

const baseConfigFileName = "config"

// EnvPrefix is prepended to every environment variable override, e.g. LAUNCHPAD_CATALOG_TYPE.
const EnvPrefix = "LAUNCHPAD"

// LoadConfig reads the base config file found in defaultPath, merges any user specified files on top of it in
// order, applies environment overrides and unmarshals the result into config.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string) *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigName(baseConfigFileName)
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		logrus.Errorf("Error reading base config path=%s: %v", defaultPath, err)
		os.Exit(-1)
	}
	logrus.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		err := v.MergeInConfig()
		if err != nil {
			logrus.Errorf("Error reading config from %s: %v", overrideConfig, err)
			os.Exit(-1)
		}
		logrus.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	err := v.Unmarshal(config, commonconfig.CustomHooks...)
	if err != nil {
		logrus.Error(err)
		os.Exit(-1)
	}

	return v
}

// ConfigureLogging sets up logrus for unattended runs, e.g. from a job agent: full timestamps on stderr.
func ConfigureLogging() {
	logrus.SetLevel(readEnvironmentLogLevel())
	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
}

// ConfigureCommandLineLogging sets up logrus for the command line: bare messages on stderr, so that stdout only
// carries command output.
func ConfigureCommandLineLogging() {
	logrus.SetLevel(readEnvironmentLogLevel())
	logrus.SetFormatter(&logging.CommandLineFormatter{})
	logrus.SetOutput(os.Stderr)
}

func readEnvironmentLogLevel() logrus.Level {
	level, ok := os.LookupEnv("LOG_LEVEL")
	if ok {
		logLevel, err := logrus.ParseLevel(level)
		if err == nil {
			return logLevel
		}
	}
	return logrus.InfoLevel
}
