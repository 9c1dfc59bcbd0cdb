// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package installer

import (
	"os"

	"github.com/cloudlift/airlift/internal/config"
)

// Host layout. Everything the deployment owns lives under the service
// user's home directory; the TLS material stays where certbot puts it.
const (
	// ServiceUser is the dedicated OS account the daemons run as.
	ServiceUser = "airflow"

	homeDir     = "/home/" + ServiceUser
	airflowHome = homeDir + "/airflow"
	deployDir   = homeDir + "/airlift-pipelines"
	blocksDir   = homeDir + "/pipeline-blocks"
	keysDir     = homeDir + "/keys"

	// KeyFile is where the service account key ends up; the seeded
	// connection records point at it.
	KeyFile = keysDir + "/airlift-sa.json"

	letsEncryptDir = "/etc/letsencrypt"
	liveCertDir    = letsEncryptDir + "/live"
	unitDir        = "/etc/systemd/system"

	webserverService = "airflow-webserver"
	schedulerService = "airflow-scheduler"

	appRepoURL    = "https://github.com/cloudlift/airlift-pipelines.git"
	blocksRepoURL = "https://github.com/cloudlift/pipeline-blocks.git"

	// adminPassword is the fixed initial password of the administrator
	// account; the console forces a change on first login.
	adminPassword = "airlift-change-me"
)

// ConnectionNames are the three platform credential records every
// deployment carries. Bootstrap always deletes and recreates them, so the
// net state is exactly these three regardless of what was there before.
var ConnectionNames = []string{
	"google_cloud_default",
	"bigquery_default",
	"google_cloud_storage_default",
}

// Installer assembles the ordered step sequence for one install run.
type Installer struct {
	cfg     config.InstallConfig
	runner  CommandRunner
	invoker string
}

// New returns an installer for the given configuration. invoker is the OS
// user who launched the run; it is added to the service group so the
// operator can poke around the deployment without sudo.
func New(cfg config.InstallConfig, runner CommandRunner, invoker string) *Installer {
	return &Installer{cfg: cfg, runner: runner, invoker: invoker}
}

// Steps returns the pipeline in execution order.
func (i *Installer) Steps() []Step {
	return []Step{
		osUserStep{runner: i.runner, invoker: i.invoker},
		packagesStep{runner: i.runner},
		certStep{
			runner:     i.runner,
			domain:     i.cfg.Domain,
			email:      i.cfg.AdminEmail,
			pathExists: pathExists,
		},
		cronStep{runner: i.runner, delay: renewalDelay},
		stopDaemonsStep{runner: i.runner},
		cloneStep{runner: i.runner},
		webAuthStep{cfg: i.cfg, runner: i.runner, writeFile: os.WriteFile},
		pipStep{runner: i.runner},
		databaseStep{runner: i.runner, cfg: i.cfg},
		unitsStep{
			domain:     i.cfg.Domain,
			pathExists: pathExists,
			writeFile:  os.WriteFile,
		},
		permissionsStep{runner: i.runner},
		activateStep{runner: i.runner},
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
