package deps

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minescope/minescope/internal/dispatch"
	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/probes"
	"github.com/minescope/minescope/internal/status"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Orchestrator *status.Orchestrator    // direct + distributed status orchestration
	Registry     *probes.Registry        // live probe sessions
	Credentials  *probes.CredentialStore // probe auth secrets
	Dispatcher   *dispatch.Dispatcher    // task correlation; sessions feed replies into it
	PromRegistry *prometheus.Registry    // metrics endpoint backing registry
}
