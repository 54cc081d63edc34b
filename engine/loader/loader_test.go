package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// triangleBuffer packs 3 float32 positions followed by 3 uint16 indices (padded to 4 bytes).
func triangleBuffer() []byte {
	positions := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	var buf bytes.Buffer
	for _, p := range positions {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(p))
	}
	for _, i := range []uint16{0, 1, 2, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, i)
	}
	return buf.Bytes()
}

// writeTriangleGLTF writes a glTF document with two meshes sharing one triangle: "Body" with an
// opaque textured material and "Window" with a blended material.
func writeTriangleGLTF(t *testing.T, dir string) string {
	t.Helper()
	data := triangleBuffer()
	doc := fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scenes": [{"name": "Tower", "nodes": [0, 1]}],
  "nodes": [{"mesh": 0}, {"mesh": 1}],
  "meshes": [
    {"name": "Body", "primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}]},
    {"name": "Window", "primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 1}]}
  ],
  "materials": [
    {"name": "stone", "pbrMetallicRoughness": {"baseColorTexture": {"index": 0}}},
    {"name": "glass", "alphaMode": "BLEND"}
  ],
  "textures": [{"source": 0}],
  "images": [{"uri": "stone.png"}],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 6}
  ],
  "buffers": [{"byteLength": %d, "uri": "data:application/octet-stream;base64,%s"}]
}`, len(data), base64.StdEncoding.EncodeToString(data))

	path := filepath.Join(dir, "tower.gltf")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGLTF(t *testing.T) {
	path := writeTriangleGLTF(t, t.TempDir())
	l := NewLoader()

	m, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Name() != "Tower" {
		t.Errorf("Name() = %q, want Tower", m.Name())
	}
	if m.MeshCount() != 2 || m.TriangleCount() != 2 || m.TextureCount() != 1 {
		t.Fatalf("meshes/triangles/textures = %d/%d/%d, want 2/2/1", m.MeshCount(), m.TriangleCount(), m.TextureCount())
	}

	body, window := m.Meshes()[0], m.Meshes()[1]
	if body.Material != common.MaterialOpaque || body.Textures.Albedo != 0 || body.Textures.Normal != common.NoTexture {
		t.Errorf("body material = %v textures = %+v", body.Material, body.Textures)
	}
	if window.Material != common.MaterialTransparent {
		t.Errorf("window material = %v, want transparent", window.Material)
	}
	if body.Bounds.Max != (mgl32.Vec3{1, 1, 0}) {
		t.Errorf("body bounds = %v", body.Bounds)
	}
	// No NORMAL attribute: normals are generated from the counter-clockwise triangle.
	if got := body.Vertices[0].Normal; got != [3]float32{0, 0, 1} {
		t.Errorf("generated normal = %v, want +Z", got)
	}

	again, err := l.Load(path)
	if err != nil || again != m {
		t.Errorf("second Load() should return the cached model")
	}
}

func TestLoadReader(t *testing.T) {
	path := writeTriangleGLTF(t, t.TempDir())
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewLoader().LoadReader("stream", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("LoadReader() error = %v", err)
	}
	if m.MeshCount() != 2 {
		t.Errorf("MeshCount() = %d, want 2", m.MeshCount())
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.gltf")
	if err := os.WriteFile(broken, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.gltf")
	if err := os.WriteFile(empty, []byte(`{"asset": {"version": "2.0"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.gltf")},
		{"malformed", broken},
		{"no meshes", empty},
		{"unsupported extension", filepath.Join(dir, "model.obj")},
		{"unknown procedural", "mem:teapot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().Load(tt.path)
			if !errors.Is(err, common.ErrAssetLoad) {
				t.Errorf("got %v, want ErrAssetLoad", err)
			}
		})
	}
}

func TestProceduralModels(t *testing.T) {
	l := NewLoader(WithProcedural("glass_transparent", Cube("glass_transparent", 2)))

	tests := []struct {
		path      string
		meshes    int
		materials []common.MaterialType
	}{
		{"mem:cube", 1, []common.MaterialType{common.MaterialOpaque}},
		{"mem:transparent_cube", 1, []common.MaterialType{common.MaterialTransparent}},
		{"mem:cube_pair", 2, []common.MaterialType{common.MaterialOpaque, common.MaterialTransparent}},
		{"mem:glass_transparent", 1, []common.MaterialType{common.MaterialTransparent}},
	}
	for _, tt := range tests {
		t.Run(strings.TrimPrefix(tt.path, MemoryScheme), func(t *testing.T) {
			m, err := l.Load(tt.path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if m.MeshCount() != tt.meshes {
				t.Fatalf("MeshCount() = %d, want %d", m.MeshCount(), tt.meshes)
			}
			for i, mesh := range m.Meshes() {
				if mesh.Material != tt.materials[i] {
					t.Errorf("mesh %d material = %v, want %v", i, mesh.Material, tt.materials[i])
				}
			}
		})
	}
}

func TestCubeMesh(t *testing.T) {
	mesh := CubeMesh("box", 2)
	if len(mesh.Vertices) != 24 || len(mesh.Indices) != 36 {
		t.Fatalf("got %d vertices / %d indices, want 24/36", len(mesh.Vertices), len(mesh.Indices))
	}
	for i, v := range mesh.Vertices {
		for axis := range 3 {
			if math.Abs(float64(v.Position[axis])) != 1 {
				t.Fatalf("vertex %d = %v, want all components ±1", i, v.Position)
			}
		}
		// Each vertex lies on the face its normal points out of.
		if mgl32.Vec3(v.Position).Dot(mgl32.Vec3(v.Normal)) != 1 {
			t.Errorf("vertex %d position %v not on face %v", i, v.Position, v.Normal)
		}
	}
}
