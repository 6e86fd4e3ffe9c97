// Command slotctl renders a slot manager's BuildOrchidYson introspection
// document as a human-readable report, in the terminal-styling idiom the
// rest of this codebase uses for operator-facing CLI output.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"

	"github.com/scusemua/exec-node-slots/internal/environment"
	"github.com/scusemua/exec-node-slots/internal/execqueue"
	"github.com/scusemua/exec-node-slots/internal/metrics"
	slotconfig "github.com/scusemua/exec-node-slots/internal/config"
	"github.com/scusemua/exec-node-slots/internal/slotmanager"
	"github.com/scusemua/exec-node-slots/internal/volume"
)

var (
	configPath = flag.String("config", "", "Path to a slot manager YAML configuration file.")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	keyStyle    = lipgloss.NewStyle().Faint(true)
)

func main() {
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: slotctl -config <path>")
		os.Exit(2)
	}

	cfg, err := slotconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var env environment.Environment
	switch cfg.JobEnvironment {
	case "container":
		env = environment.NewContainerEnvironment()
	default:
		env = environment.NewProcessEnvironment(cfg.EnableTmpfs)
	}

	queue := execqueue.New(16)
	defer queue.Close()

	manager := slotmanager.New(cfg, env, func() (volume.Manager, error) {
		return volume.New("/var/lib/execnoded/root-volumes")
	}, queue, metrics.NewManager("slotctl"))

	if err := manager.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "initialization failed: %v\n", err)
		os.Exit(1)
	}

	render(manager)
}

func render(manager *slotmanager.Manager) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("exec node %s", manager.NodeTag())))

	enabledLine := okStyle.Render("enabled")
	if !manager.IsEnabled() {
		enabledLine = badStyle.Render("disabled")
	}
	fmt.Printf("%s %s\n", keyStyle.Render("status:"), enabledLine)

	fmt.Printf("%s %d / %d\n", keyStyle.Render("slots used:"), manager.GetUsedSlotCount(), manager.GetSlotCount())

	var buf bytes.Buffer
	if err := manager.BuildOrchidYson(&buf); err != nil {
		fmt.Fprintf(os.Stderr, "failed to render introspection document: %v\n", err)
		os.Exit(1)
	}

	var pretty map[string]any
	if err := json.Unmarshal(buf.Bytes(), &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println(buf.String())
	}
}
