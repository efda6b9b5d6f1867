// Package config loads the engine configuration. Defaults are embedded as TOML and an optional
// user file is decoded on top of them, so a file only needs the keys it changes.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPath names the environment variable holding an optional overlay file path.
const EnvPath = "SURFACE_CONFIG"

//go:embed default.toml
var defaultTOML []byte

// Duration is a time.Duration that decodes from strings such as "16ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Window struct {
	Title     string `toml:"title"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	MinWidth  int    `toml:"min_width"`
	MinHeight int    `toml:"min_height"`
}

type Grid struct {
	Side int `toml:"side"`
}

type Kernel struct {
	EntryPoint string    `toml:"entry_point"`
	LocalSize  [2]uint32 `toml:"local_size"`
}

type Clock struct {
	Step       float32 `toml:"step"`
	UpperBound float32 `toml:"upper_bound"`
	Period     float32 `toml:"period"`
}

type Pump struct {
	FrameBudget  Duration `toml:"frame_budget"`
	PollInterval Duration `toml:"poll_interval"`
}

type Camera struct {
	Eye             [3]float32 `toml:"eye"`
	Center          [3]float32 `toml:"center"`
	Up              [3]float32 `toml:"up"`
	FovDeg          float32    `toml:"fov_deg"`
	Near            float32    `toml:"near"`
	Far             float32    `toml:"far"`
	RotationStepDeg float32    `toml:"rotation_step_deg"`
	RotationAxis    [3]float32 `toml:"rotation_axis"`
}

type GPU struct {
	Profiling   bool   `toml:"profiling"`
	PresentMode string `toml:"present_mode"`
}

type Programs struct {
	// Dir, when set, is read for surface.wgsl, shader.vert.wgsl and shader.frag.wgsl instead of the embedded sources.
	Dir string `toml:"dir"`
}

type Profiler struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

type Log struct {
	Environment string `toml:"environment"`
	Level       string `toml:"level"`
}

// Config is the complete engine configuration.
type Config struct {
	Window   Window   `toml:"window"`
	Grid     Grid     `toml:"grid"`
	Kernel   Kernel   `toml:"kernel"`
	Clock    Clock    `toml:"clock"`
	Pump     Pump     `toml:"pump"`
	Camera   Camera   `toml:"camera"`
	GPU      GPU      `toml:"gpu"`
	Programs Programs `toml:"programs"`
	Profiler Profiler `toml:"profiler"`
	Log      Log      `toml:"log"`
}

// Default returns the embedded default configuration.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	var c Config
	if err := toml.Unmarshal(defaultTOML, &c); err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return c
}

// Load returns the defaults overlaid with the TOML file at path. An empty path returns the defaults.
// The result is validated before it is returned.
//
// Parameters:
//   - path: optional path to a TOML overlay
//
// Returns:
//   - Config: the merged configuration
//   - error: error if the file cannot be read, decoded, or fails validation
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := Decode(data, &c); err != nil {
			return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// FromEnv loads the configuration named by the SURFACE_CONFIG environment variable.
func FromEnv() (Config, error) {
	return Load(os.Getenv(EnvPath))
}

// Decode decodes TOML data onto c, keeping any field the data does not mention. Unknown keys are rejected.
func Decode(data []byte, c *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(c)
}

// Validate checks the invariants the engine relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Grid.Side <= 0 {
		errs = append(errs, fmt.Errorf("grid.side must be positive, got %d", c.Grid.Side))
	}
	for axis, l := range c.Kernel.LocalSize {
		if l == 0 {
			errs = append(errs, fmt.Errorf("kernel.local_size[%d] must be positive", axis))
			continue
		}
		if c.Grid.Side > 0 && uint32(c.Grid.Side)%l != 0 {
			errs = append(errs, fmt.Errorf("grid.side %d is not a multiple of kernel.local_size[%d] %d", c.Grid.Side, axis, l))
		}
	}
	if c.Kernel.EntryPoint == "" {
		errs = append(errs, errors.New("kernel.entry_point must be set"))
	}
	if c.Clock.Step <= 0 {
		errs = append(errs, fmt.Errorf("clock.step must be positive, got %g", c.Clock.Step))
	}
	if c.Clock.Period > 0 && c.Clock.Step >= c.Clock.Period {
		errs = append(errs, fmt.Errorf("clock.step %g must be smaller than clock.period %g", c.Clock.Step, c.Clock.Period))
	}
	if c.Clock.Period <= 0 || c.Clock.UpperBound <= c.Clock.Period {
		errs = append(errs, fmt.Errorf("clock requires upper_bound > period > 0, got %g and %g", c.Clock.UpperBound, c.Clock.Period))
	}
	if c.Pump.FrameBudget < 0 {
		errs = append(errs, errors.New("pump.frame_budget must not be negative"))
	}
	if c.Pump.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("pump.poll_interval must be positive, got %s", c.Pump.PollInterval.Std()))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera requires far > near > 0, got %g and %g", c.Camera.Near, c.Camera.Far))
	}
	switch c.GPU.PresentMode {
	case "immediate", "fifo", "mailbox":
	default:
		errs = append(errs, fmt.Errorf("gpu.present_mode %q is not one of immediate, fifo, mailbox", c.GPU.PresentMode))
	}
	return errors.Join(errs...)
}
