// Package config reads and writes the YAML configuration of the engine and the simulator: device
// backend, frames in flight, camera, cluster grid limits, the models to load and a procedural light field.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
)

// DefaultPath is the config file path used by the command line when none is given.
const DefaultPath = "oxy-cluster.yaml"

// Viewport is the render target size in pixels.
type Viewport struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

// Camera places the perspective camera.
type Camera struct {
	FovDegrees float32    `yaml:"fov_degrees"`
	Near       float32    `yaml:"near"`
	Far        float32    `yaml:"far"`
	Position   [3]float32 `yaml:"position,flow"`
	Target     [3]float32 `yaml:"target,flow"`
}

// Cluster configures the cluster grid and light binning.
type Cluster struct {
	Slices              [3]uint32 `yaml:"slices,flow"`
	MaxLightsPerCluster int       `yaml:"max_lights_per_cluster"`
	MaxLights           int       `yaml:"max_lights"`
	Overflow            string    `yaml:"overflow"`
}

// Culling configures the frustum culler.
type Culling struct {
	CornerRefinement bool `yaml:"corner_refinement"`
}

// Model is a model descriptor plus the placement of its instances: instance i sits at
// Origin + i * Spacing along x.
type Model struct {
	model.ModelDescriptor `yaml:",inline"`
	Origin                [3]float32 `yaml:"origin,flow"`
	Spacing               float32    `yaml:"spacing"`
}

// InstancePosition returns the world position of instance i.
func (m Model) InstancePosition(i int) mgl32.Vec3 {
	return mgl32.Vec3(m.Origin).Add(mgl32.Vec3{float32(i) * m.Spacing, 0, 0})
}

// Lights configures the procedural ring light field.
type Lights struct {
	Count      int        `yaml:"count"`
	Seed       uint64     `yaml:"seed"`
	Center     [3]float32 `yaml:"center,flow"`
	RingRadius float32    `yaml:"ring_radius"`
	MinRadius  float32    `yaml:"min_radius"`
	MaxRadius  float32    `yaml:"max_radius"`
}

// Config is the root of the configuration file.
type Config struct {
	Backend        string   `yaml:"backend"`
	FramesInFlight int      `yaml:"frames_in_flight"`
	Workers        int      `yaml:"workers"`
	Viewport       Viewport `yaml:"viewport"`
	Camera         Camera   `yaml:"camera"`
	Cluster        Cluster  `yaml:"cluster"`
	Culling        Culling  `yaml:"culling"`
	Models         []Model  `yaml:"models"`
	Lights         Lights   `yaml:"lights"`
}

// Default returns the configuration of the demo scene: a row of opaque cubes, a row of
// transparent cubes and 256 lights on the default 16 x 9 x 24 grid.
func Default() Config {
	return Config{
		Backend:        device.BackendTypeSimulated.String(),
		FramesInFlight: frame.DefaultFramesInFlight,
		Workers:        4,
		Viewport:       Viewport{Width: 1600, Height: 900},
		Camera: Camera{
			FovDegrees: 60,
			Near:       0.1,
			Far:        1000,
			Position:   [3]float32{0, 4, 18},
			Target:     [3]float32{0, 2, 0},
		},
		Cluster: Cluster{
			Slices:              [3]uint32{cluster.DefaultSlicesX, cluster.DefaultSlicesY, cluster.DefaultSlicesZ},
			MaxLightsPerCluster: cluster.DefaultMaxLightsPerCluster,
			MaxLights:           cluster.DefaultMaxLights,
			Overflow:            cluster.OverflowClamp.String(),
		},
		Models: []Model{
			{
				ModelDescriptor: model.ModelDescriptor{SourcePath: "mem:cube", InstanceCount: 8, Clickable: true},
				Origin:          [3]float32{-10.5, 0, 0},
				Spacing:         3,
			},
			{
				ModelDescriptor: model.ModelDescriptor{SourcePath: "mem:transparent_cube", InstanceCount: 8},
				Origin:          [3]float32{-10.5, 0, -6},
				Spacing:         3,
			},
		},
		Lights: Lights{
			Count:      256,
			Seed:       1,
			RingRadius: 10,
			MinRadius:  0.5,
			MaxRadius:  2,
		},
	}
}

// Load reads a config file. Zero fields are filled from Default(); a file without models keeps
// the default models.
//
// Parameters:
//   - path: the YAML file
//
// Returns:
//   - Config: the validated configuration
//   - error: an error wrapping common.ErrConfig when the file is unreadable, malformed or invalid
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w: %w", common.ErrConfig, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config data. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w: %w", common.ErrConfig, err)
	}
	c.fillDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	c.Backend = common.Coalesce(c.Backend, d.Backend)
	c.FramesInFlight = common.Coalesce(c.FramesInFlight, d.FramesInFlight)
	c.Workers = common.Coalesce(c.Workers, d.Workers)
	c.Viewport.Width = common.Coalesce(c.Viewport.Width, d.Viewport.Width)
	c.Viewport.Height = common.Coalesce(c.Viewport.Height, d.Viewport.Height)
	c.Camera.FovDegrees = common.Coalesce(c.Camera.FovDegrees, d.Camera.FovDegrees)
	c.Camera.Near = common.Coalesce(c.Camera.Near, d.Camera.Near)
	c.Camera.Far = common.Coalesce(c.Camera.Far, d.Camera.Far)
	c.Camera.Position = common.Coalesce(c.Camera.Position, d.Camera.Position)
	c.Camera.Target = common.Coalesce(c.Camera.Target, d.Camera.Target)
	c.Cluster.Slices = common.Coalesce(c.Cluster.Slices, d.Cluster.Slices)
	c.Cluster.MaxLightsPerCluster = common.Coalesce(c.Cluster.MaxLightsPerCluster, d.Cluster.MaxLightsPerCluster)
	c.Cluster.MaxLights = common.Coalesce(c.Cluster.MaxLights, d.Cluster.MaxLights)
	c.Cluster.Overflow = common.Coalesce(c.Cluster.Overflow, d.Cluster.Overflow)
	if len(c.Models) == 0 {
		c.Models = d.Models
	}
	c.Lights.Seed = common.Coalesce(c.Lights.Seed, d.Lights.Seed)
	c.Lights.RingRadius = common.Coalesce(c.Lights.RingRadius, d.Lights.RingRadius)
	c.Lights.MinRadius = common.Coalesce(c.Lights.MinRadius, d.Lights.MinRadius)
	c.Lights.MaxRadius = common.Coalesce(c.Lights.MaxRadius, d.Lights.MaxRadius)
}

// Validate checks every field. All problems are reported together.
//
// Returns:
//   - error: nil, or the joined problems, each wrapping common.ErrConfig
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("config: "+format+": %w", append(args, common.ErrConfig)...))
	}

	if _, ok := device.ParseBackendType(c.Backend); !ok {
		fail("unknown backend %q", c.Backend)
	}
	if c.FramesInFlight < 1 || c.FramesInFlight > frame.MaxFramesInFlight {
		fail("frames_in_flight %d not in [1, %d]", c.FramesInFlight, frame.MaxFramesInFlight)
	}
	if c.Workers < 1 {
		fail("workers %d", c.Workers)
	}
	if c.Viewport.Width == 0 || c.Viewport.Height == 0 {
		fail("viewport %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	if !(c.Camera.FovDegrees > 0 && c.Camera.FovDegrees < 180) {
		fail("fov_degrees %v", c.Camera.FovDegrees)
	}
	if _, err := cluster.NewSliceParams(c.Cluster.Slices[2], c.Camera.Near, c.Camera.Far); err != nil {
		errs = append(errs, err)
	}
	if err := c.Grid().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Cluster.MaxLightsPerCluster < 1 || c.Cluster.MaxLights < 1 {
		fail("light limits %d per cluster, %d total", c.Cluster.MaxLightsPerCluster, c.Cluster.MaxLights)
	}
	if _, ok := cluster.ParseOverflowPolicy(c.Cluster.Overflow); !ok {
		fail("unknown overflow policy %q", c.Cluster.Overflow)
	}
	for i, m := range c.Models {
		if err := m.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: model %d: %w", i, err))
		}
	}
	if c.Lights.Count < 0 || c.Lights.Count > c.Cluster.MaxLights {
		fail("light count %d not in [0, %d]", c.Lights.Count, c.Cluster.MaxLights)
	}
	if c.Lights.MinRadius < 0 || c.Lights.MaxRadius < c.Lights.MinRadius {
		fail("light radius range [%v, %v]", c.Lights.MinRadius, c.Lights.MaxRadius)
	}
	return errors.Join(errs...)
}

// Save writes the config as YAML, creating the parent directory if needed.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: a marshal or filesystem error
func (c Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// BackendType returns the parsed backend.
func (c Config) BackendType() device.BackendType {
	b, _ := device.ParseBackendType(c.Backend)
	return b
}

// Grid returns the cluster grid.
func (c Config) Grid() cluster.Grid {
	return cluster.Grid{X: c.Cluster.Slices[0], Y: c.Cluster.Slices[1], Z: c.Cluster.Slices[2]}
}

// OverflowPolicy returns the parsed overflow policy.
func (c Config) OverflowPolicy() cluster.OverflowPolicy {
	p, _ := cluster.ParseOverflowPolicy(c.Cluster.Overflow)
	return p
}

// Descriptors returns the model descriptors in file order.
func (c Config) Descriptors() []model.ModelDescriptor {
	out := make([]model.ModelDescriptor, len(c.Models))
	for i, m := range c.Models {
		out[i] = m.ModelDescriptor
	}
	return out
}
