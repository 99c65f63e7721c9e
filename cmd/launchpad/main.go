package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/launchpad/cmd/launchpad/cmd"
	"github.com/armadaproject/launchpad/internal/common"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/common/logging"
)

func main() {
	common.ConfigureCommandLineLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Debug("command failed")
		log.Error(err)
	}
	os.Exit(launchpaderrors.ExitCodeFromError(err))
}
