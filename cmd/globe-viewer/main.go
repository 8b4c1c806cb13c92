package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/sudorandom/globe-paths/pkg/config"
	"github.com/sudorandom/globe-paths/pkg/control"
	"github.com/sudorandom/globe-paths/pkg/globe"
	"github.com/sudorandom/globe-paths/pkg/loop"
	"github.com/sudorandom/globe-paths/pkg/sources"
	"github.com/sudorandom/globe-paths/pkg/utils"
	"github.com/sudorandom/globe-paths/pkg/viewer"
)

type CLI struct {
	config.Config `embed:""`

	ConfigFile kong.ConfigFlag `name:"config" help:"TOML config file."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("globe-viewer"),
		kong.Description("A dotted globe with animated flight paths between cities."),
		kong.Configuration(config.TOMLLoader, "globe.toml"),
		config.Vars(),
		kong.UsageOnError(),
	)
	cfg := &cli.Config

	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var store *utils.AssetStore
	if !cfg.NoCache {
		var err error
		store, err = utils.OpenAssetStore(filepath.Join(cfg.CacheDir, "assets"))
		if err != nil {
			log.Fatalf("Failed to open asset cache: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("Error closing asset cache: %v", err)
			}
		}()
	}

	maps := &sources.MapLoader{Source: cfg.Map, Store: store, MaxWidth: cfg.MaskWidth}
	locations := &sources.LocationLoader{Source: cfg.Locations, Store: store, Keywords: cfg.Filter, Limit: cfg.Limit}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := loop.New(time.Now())
	g := globe.New(l, maps, locations, cfg.Options())
	if err := g.Init(cfg.Params()); err != nil {
		log.Fatalf("Failed to initialize globe: %v", err)
	}

	if cfg.ControlURL != "" {
		go func() {
			if err := control.Listen(ctx, cfg.ControlURL, l, g); err != nil && ctx.Err() == nil {
				log.Printf("[CONTROL] %v", err)
			}
		}()
	}

	if cfg.Headless {
		log.Println("Running in HEADLESS mode (no window).")
		l.Every(cfg.SnapshotInterval, func(time.Time) {
			log.Printf("[GLOBE] %s", g.Snapshot())
		})
		if err := l.Run(ctx, cfg.TPS); err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
		g.Stop()
		return
	}

	v := viewer.NewViewer(cfg.Width, cfg.Height, g, l)
	v.InitDotTexture()

	ebiten.SetTPS(cfg.TPS)
	ebiten.SetWindowSize(cfg.WindowWidth, cfg.WindowHeight)
	ebiten.SetWindowTitle("Globe Paths")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}
	g.Stop()
}
