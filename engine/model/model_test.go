package model

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/shader"
)

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    ModelDescriptor
		wantErr bool
	}{
		{"valid", ModelDescriptor{SourcePath: "a.gltf", InstanceCount: 1}, false},
		{"zero instances", ModelDescriptor{SourcePath: "a.gltf"}, true},
		{"empty path", ModelDescriptor{InstanceCount: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, common.ErrConfig) {
				t.Errorf("got %v, want ErrConfig", err)
			}
		})
	}
}

func TestMaterialFromName(t *testing.T) {
	tests := map[string]common.MaterialType{
		"Body":               common.MaterialOpaque,
		"Glass_Transparent":  common.MaterialTransparent,
		"leaves-transparent": common.MaterialTransparent,
		"":                   common.MaterialOpaque,
	}
	for name, want := range tests {
		if got := MaterialFromName(name); got != want {
			t.Errorf("MaterialFromName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewModelBounds(t *testing.T) {
	m := NewModel(
		WithName("pair"),
		WithMeshes([]ImportedMesh{
			{
				Name:     "a",
				Vertices: []GPUVertex{{Position: [3]float32{-1, 0, 0}}, {Position: [3]float32{1, 2, 0}}, {Position: [3]float32{0, 0, 3}}},
				Indices:  []uint32{0, 1, 2},
			},
			{
				Name:     "b",
				Vertices: []GPUVertex{{Position: [3]float32{5, 5, 5}}, {Position: [3]float32{6, 6, 6}}, {Position: [3]float32{5, 6, 5}}},
				Indices:  []uint32{0, 1, 2, 2, 1, 0},
			},
		}),
	)

	if got := m.Meshes()[0].Bounds; got.Min != (mgl32.Vec3{-1, 0, 0}) || got.Max != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("mesh a bounds = %v", got)
	}
	if got := m.Bounds(); got.Min != (mgl32.Vec3{-1, 0, 0}) || got.Max != (mgl32.Vec3{6, 6, 6}) {
		t.Errorf("model bounds = %v", got)
	}
	if m.VertexCount() != 6 || m.IndexCount() != 9 || m.TriangleCount() != 3 {
		t.Errorf("counts = %d/%d/%d, want 6/9/3", m.VertexCount(), m.IndexCount(), m.TriangleCount())
	}
}

func TestGPUMeshDataLayout(t *testing.T) {
	md := GPUMeshData{
		VertexOffset:     10,
		VertexCount:      24,
		IndexOffset:      36,
		IndexCount:       36,
		ModelMatrixIndex: 3,
		Textures:         common.TextureSet{Albedo: 4, Normal: 5, Metalness: -1, Roughness: -1, Occlusion: 6, Emissive: -1},
		Material:         uint32(common.MaterialTransparent),
	}
	if md.Size() != GPUMeshDataSize {
		t.Fatalf("Size() = %d, want %d", md.Size(), GPUMeshDataSize)
	}
	buf := md.Marshal()
	if common.Uint32At(buf, 16) != 3 || int32(common.Uint32At(buf, 28)) != -1 || common.Uint32At(buf, 44) != 1 {
		t.Errorf("unexpected layout %v", buf)
	}
	if got := UnmarshalGPUMeshData(buf); got != md {
		t.Errorf("got %+v, want %+v", got, md)
	}
}

func TestMarshalVertices(t *testing.T) {
	v := GPUVertex{Position: [3]float32{1, 2, 3}, Color: [4]float32{1, 1, 1, 1}}
	if v.Size() != GPUVertexSize {
		t.Fatalf("Size() = %d, want %d", v.Size(), GPUVertexSize)
	}
	buf := MarshalVertices([]GPUVertex{{}, v})
	if len(buf) != 2*GPUVertexSize {
		t.Fatalf("len = %d", len(buf))
	}
	if got := common.Float32At(buf, GPUVertexSize+8); got != 3 {
		t.Errorf("position z = %v, want 3", got)
	}
	if got := common.Float32At(buf, GPUVertexSize+44); got != 1 {
		t.Errorf("color a = %v, want 1", got)
	}
}

func TestGPUTypesMatchWGSL(t *testing.T) {
	const source = `//@oxy:include vertex
//@oxy:include mesh_data

//@oxy:group 0 0 storage_read vertices array<vertex>
//@oxy:group 0 1 storage_read meshes array<mesh_data>

@compute @workgroup_size(64)
fn touch_main(@builtin(global_invocation_id) gid: vec3<u32>) {
}
`
	p, err := shader.Compile(source,
		shader.WithStruct("vertex", GPUVertexSource),
		shader.WithStruct("mesh_data", GPUMeshDataSource),
	)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if size, ok := p.StructSize("Vertex"); !ok || size != GPUVertexSize {
		t.Errorf("Vertex size = %d, %v; want %d", size, ok, GPUVertexSize)
	}
	if size, ok := p.StructSize("MeshData"); !ok || size != GPUMeshDataSize {
		t.Errorf("MeshData size = %d, %v; want %d", size, ok, GPUMeshDataSize)
	}
	if p.MinBindingSizes[0] != GPUVertexSize || p.MinBindingSizes[1] != GPUMeshDataSize {
		t.Errorf("MinBindingSizes = %v", p.MinBindingSizes)
	}
}
