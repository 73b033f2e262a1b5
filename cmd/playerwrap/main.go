package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
	"github.com/gabrielcapilla/playerwrap/internal/player"
	"github.com/gabrielcapilla/playerwrap/internal/services/config"
	"github.com/gabrielcapilla/playerwrap/internal/services/engine"
	"github.com/gabrielcapilla/playerwrap/internal/services/storage"
	"github.com/gabrielcapilla/playerwrap/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "path to a config.yml file")
	headless := flag.Bool("headless", false, "play the source without the terminal UI")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [--config path] [--headless] [source]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*configPath, *headless, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "playerwrap: %v\n", err)
		os.Exit(1)
	}
}

func parseSource(arg string) domain.Source {
	if strings.Contains(arg, "://") {
		return domain.URISource(arg, nil, nil)
	}
	return domain.PathSource(arg)
}

func run(configPath string, headless bool, arg string) error {
	cfg, err := config.NewViperConfigService(configPath).Load()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	logFile, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	p := player.New(engine.NewMpvEngine(cfg.Mpv))
	defer p.Release()

	if headless {
		if arg == "" {
			return fmt.Errorf("a source is required in headless mode")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return playHeadless(ctx, p, parseSource(arg), os.Stdout)
	}

	storageService, err := storage.NewBboltStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("error initializing the storage service: %w", err)
	}
	defer storageService.Close()

	var initial *domain.Source
	if arg != "" {
		src := parseSource(arg)
		initial = &src
	}

	program := tea.NewProgram(ui.InitialModel(p, storageService, cfg, initial), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
