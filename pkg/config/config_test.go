package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/globe-paths/pkg/globe"
	"github.com/sudorandom/globe-paths/pkg/sources"
)

type cli struct {
	Config `embed:""`
}

func parse(t *testing.T, configPath string, args ...string) *Config {
	t.Helper()
	var c cli
	opts := []kong.Option{kong.Name("globe-viewer"), Vars(), kong.Exit(func(int) { t.Fatal("unexpected exit") })}
	if configPath != "" {
		opts = append(opts, kong.Configuration(TOMLLoader, configPath))
	}
	parser, err := kong.New(&c, opts...)
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return &c.Config
}

func TestDefaults(t *testing.T) {
	c := parse(t, "")
	assert.Equal(t, globe.DefaultParams(), c.Params())
	assert.Equal(t, sources.NaturalEarthLandURL, c.Map)
	assert.Equal(t, sources.WorldCitiesURL, c.Locations)
	assert.Equal(t, 100*time.Millisecond, c.SpawnInterval)
	assert.Equal(t, 60, c.TPS)
	assert.NoError(t, c.Validate())
}

func TestTOMLFileWithFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "globe.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
dot-density = 25.5
max_paths = 3
rows = 120
filter = ["japan", "france"]
spawn_interval = "250ms"
headless = true
`), 0o644))

	c := parse(t, path, "--max-paths=7")
	assert.Equal(t, 25.5, c.DotDensity)
	assert.Equal(t, 120, c.Rows)
	assert.Equal(t, 7, c.MaxPaths)
	assert.Equal(t, []string{"japan", "france"}, c.Filter)
	assert.Equal(t, 250*time.Millisecond, c.SpawnInterval)
	assert.True(t, c.Headless)
}

func TestTOMLLoaderRejectsBadFile(t *testing.T) {
	_, err := TOMLLoader(strings.NewReader("rows = = 3"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"ok", func(*Config) {}, nil},
		{"zero rows", func(c *Config) { c.Rows = 0 }, globe.ErrInvalidParams},
		{"negative max paths", func(c *Config) { c.MaxPaths = -1 }, globe.ErrInvalidParams},
		{"no tps", func(c *Config) { c.TPS = 0 }, ErrInvalidConfig},
		{"no map", func(c *Config) { c.Map = "" }, ErrInvalidConfig},
		{"headless without interval", func(c *Config) { c.Headless, c.SnapshotInterval = true, 0 }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := parse(t, "")
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOptionsSeed(t *testing.T) {
	c := parse(t, "", "--seed=42", "--spawn-interval=50ms")
	opts := c.Options()
	assert.Equal(t, int64(42), opts.Seed)
	assert.Equal(t, 50*time.Millisecond, opts.SpawnInterval)

	c.Seed = 0
	assert.NotZero(t, c.Options().Seed)
}
