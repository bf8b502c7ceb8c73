package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/config"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/logging"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/login"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/node"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/selection"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/tui"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := initConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// initConfig writes the current settings (defaults plus environment) to the
// project and global config paths unless a config already exists
func initConfig() error {
	if config.Exists() {
		fmt.Println("config already exists")
		return nil
	}
	cfg, err := config.LoadFrom("")
	if err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	path, _ := config.GlobalPath()
	fmt.Printf("wrote %s and %s\n", config.ProjectPath(), path)
	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The terminal owns stdout, so logs always go to a file
	if cfg.Log.File == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Log.File = filepath.Join(home, ".vfxflow", "logs", "vfxflow.log")
	}
	closer := logging.Setup(cfg.Log, io.Discard)
	defer closer.Close()
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := flow.NewClient(cfg.Flow.ServerURL,
		flow.WithTimeout(cfg.Flow.Timeout),
		flow.WithLogger(logger),
	)

	store := selection.NewStore()
	unsubscribe := store.Subscribe(selection.LogChanges(logger))
	defer unsubscribe()

	coord := selection.NewCoordinator(store, client, selection.Options{
		SetShotInProgress: cfg.Selection.SetShotInProgress,
		AssignTasks:       cfg.Selection.AssignTasks,
		Context:           ctx,
		Logger:            logger,
	})
	machine := login.New(client,
		login.WithContext(ctx),
		login.WithLogger(logger),
		login.WithDefaults(cfg.Credentials()),
	)

	project := node.NewProjectNode(coord)
	defer project.Close()
	shot := node.NewShotNode(coord, client)
	defer shot.Close()
	task := node.NewTaskNode(coord)
	defer task.Close()

	chain := node.NewChain(logger,
		node.NewLoginNode(machine),
		project,
		shot,
		task,
		node.NewPublishNode(client, node.PublishSettings{Status: cfg.Publish.Status}),
		node.NewFilenameNode(cfg.Publish.Suffix),
	)

	logger.Info("starting", "server_url", client.BaseURL(), "nodes", len(chain.Nodes()))

	p := tea.NewProgram(
		tui.NewRootModel(tui.Options{
			Coordinator: coord,
			Login:       machine,
			Chain:       chain,
			Context:     ctx,
			Logger:      logger,
		}),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
