package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
)

const particleSource = `struct Particle {
    // xyz = position, w = mass
    position: vec4<f32>,
    velocity: vec3<f32>,
    age: f32,
}`

const stepSource = `//@oxy:include particle
//@oxy:include particle

struct Params {
    dt: f32,
    count: u32,
    gravity: vec3<f32>,
}

//@oxy:group 0 0 uniform params Params
//@oxy:group 0 2 storage_read_write counter atomic<u32>
//@oxy:group 0 1 storage_read_write particles array<particle>

@compute @workgroup_size(32, 2)
fn step_main(@builtin(global_invocation_id) gid: vec3<u32>) {
}
`

func TestCompile(t *testing.T) {
	p, err := Compile(stepSource, WithStruct("particle", particleSource))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if n := strings.Count(p.Source, "struct Particle"); n != 1 {
		t.Errorf("Particle declared %d times, want 1", n)
	}
	if !strings.Contains(p.Source, "@group(0) @binding(1) var<storage, read_write> particles: array<Particle>;") {
		t.Errorf("generated declaration missing:\n%s", p.Source)
	}
	if p.EntryPoint != "step_main" {
		t.Errorf("EntryPoint = %q", p.EntryPoint)
	}
	if p.WorkgroupSize != [3]uint32{32, 2, 1} {
		t.Errorf("WorkgroupSize = %v", p.WorkgroupSize)
	}

	wantLayout := []device.BindingKind{device.BindingUniform, device.BindingStorageReadWrite, device.BindingStorageReadWrite}
	wantSizes := []uint64{32, 32, 4}
	for i := range wantLayout {
		if p.Layout[i] != wantLayout[i] || p.MinBindingSizes[i] != wantSizes[i] {
			t.Errorf("slot %d = %v %d bytes, want %v %d bytes", i, p.Layout[i], p.MinBindingSizes[i], wantLayout[i], wantSizes[i])
		}
	}

	// vec3 aligns to 16: dt 0, count 4, gravity 16..28, size rounded to 32.
	if size, ok := p.StructSize("Params"); !ok || size != 32 {
		t.Errorf("Params size = %d, %v; want 32", size, ok)
	}
	if size, ok := p.StructSize("Particle"); !ok || size != 32 {
		t.Errorf("Particle size = %d, %v; want 32", size, ok)
	}

	k := p.Kernel("step", func([3]uint32, device.Memory) {})
	if k.Label != "step" || k.Source != p.Source || len(k.Layout) != 3 || k.Ordered {
		t.Errorf("Kernel = %+v", k)
	}
}

func TestCompileErrors(t *testing.T) {
	const entry = "\n@compute @workgroup_size(1)\nfn main() {}\n"
	tests := []struct {
		name   string
		source string
	}{
		{"unknown include", "//@oxy:include missing" + entry},
		{"unknown annotation", "//@oxy:define X 1" + entry},
		{"bad address space", "//@oxy:group 0 0 private x u32" + entry},
		{"missing arguments", "//@oxy:group 0 0 uniform x" + entry},
		{"sparse bindings", "//@oxy:group 0 1 uniform x u32" + entry},
		{"second group", "//@oxy:group 1 0 uniform x u32" + entry},
		{"duplicate binding", "//@oxy:group 0 0 uniform x u32\n//@oxy:group 0 0 uniform y u32" + entry},
		{"no entry point", "//@oxy:group 0 0 uniform x u32\n"},
		{"two entry points", entry + entry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.source); !errors.Is(err, common.ErrConfig) {
				t.Errorf("Compile() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestResolveTypeLayout(t *testing.T) {
	known := map[string]typeLayout{"Light": {32, 16}}
	tests := []struct {
		typeName string
		want     typeLayout
		ok       bool
	}{
		{"u32", typeLayout{4, 4}, true},
		{"array<vec4<f32>, 6>", typeLayout{96, 16}, true},
		{"array<vec3<f32>, 2>", typeLayout{32, 16}, true},
		{"array<Light>", typeLayout{32, 16}, true},
		{"array<u32>", typeLayout{4, 4}, true},
		{"texture_2d<f32>", typeLayout{}, false},
	}
	for _, tt := range tests {
		got, ok := resolveTypeLayout(tt.typeName, known)
		if ok != tt.ok || got != tt.want {
			t.Errorf("resolveTypeLayout(%q) = %v, %v; want %v, %v", tt.typeName, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStripComments(t *testing.T) {
	src := "a /* x /* nested */ y */ b // tail\nc"
	if got := strings.Fields(stripComments(src)); strings.Join(got, " ") != "a b c" {
		t.Errorf("stripComments = %q", got)
	}
}
