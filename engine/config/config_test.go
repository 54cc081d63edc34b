package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if c.Grid() != cluster.DefaultGrid() {
		t.Errorf("Grid() = %v, want %v", c.Grid(), cluster.DefaultGrid())
	}
	if c.BackendType() != device.BackendTypeSimulated {
		t.Errorf("BackendType() = %v", c.BackendType())
	}
	if c.OverflowPolicy() != cluster.OverflowClamp {
		t.Errorf("OverflowPolicy() = %v", c.OverflowPolicy())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "engine.yaml")
	want := Default()
	want.Cluster.Overflow = "fail"
	want.Culling.CornerRefinement = true
	want.Models[0].InstanceCount = 3

	if err := want.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Cluster != want.Cluster || got.Culling != want.Culling || got.Camera != want.Camera {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Models) != 2 || got.Models[0] != want.Models[0] {
		t.Errorf("models = %+v, want %+v", got.Models, want.Models)
	}
}

func TestParseFillsDefaults(t *testing.T) {
	c, err := Parse([]byte(`
frames_in_flight: 3
cluster:
  slices: [8, 4, 12]
models:
  - source: mem:cube_pair
    instances: 2
    clickable: true
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.FramesInFlight != 3 {
		t.Errorf("FramesInFlight = %d, want 3", c.FramesInFlight)
	}
	if c.Grid() != (cluster.Grid{X: 8, Y: 4, Z: 12}) {
		t.Errorf("Grid() = %v", c.Grid())
	}
	if c.Cluster.MaxLightsPerCluster != cluster.DefaultMaxLightsPerCluster {
		t.Errorf("MaxLightsPerCluster = %d", c.Cluster.MaxLightsPerCluster)
	}
	d := c.Descriptors()
	if len(d) != 1 || d[0].SourcePath != "mem:cube_pair" || d[0].InstanceCount != 2 || !d[0].Clickable {
		t.Errorf("Descriptors() = %+v", d)
	}
	if c.Camera.Near != 0.1 || c.Viewport.Width != 1600 {
		t.Errorf("camera/viewport defaults not applied: %+v %+v", c.Camera, c.Viewport)
	}

	empty, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if len(empty.Models) != len(Default().Models) {
		t.Errorf("empty config has %d models", len(empty.Models))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "colour: red\n", "colour"},
		{"backend", "backend: vulkan\n", "backend"},
		{"frames in flight", "frames_in_flight: 9\n", "frames_in_flight"},
		{"far before near", "camera: {near: 10, far: 1}\n", "slices"},
		{"overflow", "cluster: {overflow: drop}\n", "overflow"},
		{"zero instances", "models: [{source: mem:cube, instances: 0}]\n", "model 0"},
		{"too many lights", "cluster: {max_lights: 4}\nlights: {count: 5}\n", "light count"},
		{"malformed", "viewport: [1, 2\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, common.ErrConfig) {
				t.Fatalf("got %v, want ErrConfig", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, common.ErrConfig) {
		t.Errorf("got %v, want ErrConfig", err)
	}
}

func TestInstancePosition(t *testing.T) {
	m := Model{Origin: [3]float32{1, 2, 3}, Spacing: 2}
	if got := m.InstancePosition(3); got.X() != 7 || got.Y() != 2 || got.Z() != 3 {
		t.Errorf("InstancePosition(3) = %v", got)
	}
}
