// Package config holds the viewer's settings. Values come from kong flags and an
// optional TOML file, flags taking precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pelletier/go-toml/v2"

	"github.com/sudorandom/globe-paths/pkg/globe"
	"github.com/sudorandom/globe-paths/pkg/sources"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Width        int  `help:"Internal rendering width." default:"1280"`
	Height       int  `help:"Internal rendering height." default:"720"`
	WindowWidth  int  `help:"Initial window width." default:"1280"`
	WindowHeight int  `help:"Initial window height." default:"720"`
	TPS          int  `name:"tps" help:"Ticks per second (engine updates)." default:"60"`
	Headless     bool `help:"Run the globe without a window, logging snapshots."`

	DotDensity  float64 `help:"Dots per unit of band circumference." default:"50"`
	Rows        int     `help:"Latitude bands from pole to pole." default:"200"`
	GlobeRadius float64 `help:"Globe radius in model units." default:"1"`
	MaxPaths    int     `help:"Maximum live paths." default:"10"`

	Map       string   `help:"World map PNG or GeoJSON, file or URL." default:"${map_url}"`
	MaskWidth int      `help:"Maximum mask width in pixels." default:"720"`
	Locations string   `help:"Location dataset, JSON or CSV, file or URL." default:"${locations_url}"`
	Filter    []string `help:"Only use locations whose city, region or country contains one of these keywords."`
	Limit     int      `help:"Keep only the most populous N locations (0 keeps all)." default:"2000"`

	CacheDir string `help:"Asset cache directory." default:"data/cache"`
	NoCache  bool   `help:"Always download assets."`

	ControlURL       string        `name:"control-url" help:"Websocket URL to receive parameter updates from."`
	Seed             int64         `help:"Path pool shuffle seed (0 picks one from the clock)."`
	SpawnInterval    time.Duration `help:"Spawn tick interval." default:"100ms"`
	SnapshotInterval time.Duration `help:"How often headless mode logs a snapshot." default:"5s"`
}

// Vars are the interpolations used in Config's defaults.
func Vars() kong.Vars {
	return kong.Vars{
		"map_url":       sources.NaturalEarthLandURL,
		"locations_url": sources.WorldCitiesURL,
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w: render size %dx%d", ErrInvalidConfig, c.Width, c.Height))
	}
	if c.TPS <= 0 {
		errs = append(errs, fmt.Errorf("%w: tps must be positive, got %d", ErrInvalidConfig, c.TPS))
	}
	if err := c.Params().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Map == "" || c.Locations == "" {
		errs = append(errs, fmt.Errorf("%w: map and locations sources are required", ErrInvalidConfig))
	}
	if c.SpawnInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: spawn interval must be positive", ErrInvalidConfig))
	}
	if c.Headless && c.SnapshotInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: snapshot interval must be positive", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

func (c *Config) Params() globe.Params {
	return globe.Params{
		DotDensity:  c.DotDensity,
		Rows:        c.Rows,
		GlobeRadius: c.GlobeRadius,
		MaxPaths:    c.MaxPaths,
	}
}

func (c *Config) Options() globe.Options {
	opts := globe.DefaultOptions()
	opts.SpawnInterval = c.SpawnInterval
	if c.Seed != 0 {
		opts.Seed = c.Seed
	} else {
		opts.Seed = time.Now().UnixNano()
	}
	return opts
}

// TOMLLoader is a kong.ConfigurationLoader. Keys may use the flag's name or its
// snake_case form.
func TOMLLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := toml.NewDecoder(r).Decode(&values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if raw, ok := values[key]; ok {
				return tomlValue(raw), nil
			}
		}
		return nil, nil
	}), nil
}

func tomlValue(raw any) string {
	if list, ok := raw.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, v := range list {
			parts = append(parts, fmt.Sprint(v))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(raw)
}
