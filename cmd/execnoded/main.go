// Command execnoded runs the execution-slot manager as a standalone node
// daemon: it loads configuration, constructs the job environment and slot
// manager, brings the manager up, and serves Prometheus metrics until
// signaled to stop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Scusemua/go-utils/config"

	"github.com/scusemua/exec-node-slots/internal/environment"
	"github.com/scusemua/exec-node-slots/internal/execqueue"
	"github.com/scusemua/exec-node-slots/internal/metrics"
	slotconfig "github.com/scusemua/exec-node-slots/internal/config"
	"github.com/scusemua/exec-node-slots/internal/slotmanager"
	"github.com/scusemua/exec-node-slots/internal/volume"
)

var (
	configPath   = flag.String("config", "", "Path to a slot manager YAML configuration file.")
	globalLogger = config.GetLogger("")
)

func main() {
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: execnoded -config <path>")
		os.Exit(2)
	}

	cfg, err := slotconfig.Load(*configPath)
	if err != nil {
		globalLogger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	var env environment.Environment
	switch cfg.JobEnvironment {
	case "container":
		env = environment.NewContainerEnvironment()
	default:
		env = environment.NewProcessEnvironment(cfg.EnableTmpfs)
	}

	metricsManager := metrics.NewManager(fmt.Sprintf("%s-%d", cfg.NodeTagPrefix, cfg.RpcPort))
	metricsManager.Serve(cfg.PrometheusPort)

	queue := execqueue.New(64)

	manager := slotmanager.New(cfg, env, func() (volume.Manager, error) {
		return volume.New("/var/lib/execnoded/root-volumes")
	}, queue, metricsManager)

	globalLogger.Info("Node tag: %s, manager id: %s", manager.NodeTag(), manager.Id)

	if err := manager.Initialize(); err != nil {
		globalLogger.Error("Slot manager initialization failed: %v", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			manager.PublishMetrics()
		case s := <-sig:
			globalLogger.Info("Received signal %v, shutting down.", s)
			queue.Close()
			return
		}
	}
}
