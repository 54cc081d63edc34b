package frame

import (
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
)

// PassKind identifies a member of the closed set of frame passes.
type PassKind int

const (
	PassKindCull PassKind = iota
	PassKindClusterBuild
	PassKindLightBin
	PassKindMaterialDraw
)

func (k PassKind) String() string {
	switch k {
	case PassKindCull:
		return "cull"
	case PassKindClusterBuild:
		return "cluster-build"
	case PassKindLightBin:
		return "light-bin"
	case PassKindMaterialDraw:
		return "material-draw"
	default:
		return "unknown"
	}
}

// Pass is one step of a frame. The set of passes is closed: only the types in this file
// implement it, and the Scheduler handles each of them.
type Pass interface {
	Kind() PassKind
	sealed()
}

// CullPass runs GPU frustum culling over every scene entry.
type CullPass struct {
	Frustum common.Frustum
}

// ClusterBuildPass rebuilds the cluster grid when the view's projection or viewport changed.
type ClusterBuildPass struct {
	View camera.View
}

// LightBinPass assigns lights to clusters.
type LightBinPass struct {
	Lights []light.PointLight
}

// MaterialDrawPass hands one material's indirect draw range to an external draw callback, after
// declaring the indirect records and light bins as consumed.
type MaterialDrawPass struct {
	Material common.MaterialType
	Draw     DrawFunc
}

func (CullPass) Kind() PassKind         { return PassKindCull }
func (ClusterBuildPass) Kind() PassKind { return PassKindClusterBuild }
func (LightBinPass) Kind() PassKind     { return PassKindLightBin }
func (MaterialDrawPass) Kind() PassKind { return PassKindMaterialDraw }

func (CullPass) sealed()         {}
func (ClusterBuildPass) sealed() {}
func (LightBinPass) sealed()     {}
func (MaterialDrawPass) sealed() {}

// IndirectDraw describes one multi-draw-indirect call over a contiguous material range.
type IndirectDraw struct {
	Material common.MaterialType
	Buffer   device.Handle
	Offset   uint64
	Count    uint32
	Stride   uint32
}

// DrawFunc issues the actual draw of a material range. Shading is outside this module.
type DrawFunc func(ctx *Context, draw IndirectDraw) error

// StandardPasses returns the usual frame: cull, cluster build, light binning, then one draw pass
// per material type in draw order.
//
// Parameters:
//   - view: the camera view of the frame
//   - lights: the lights to bin
//   - draw: the draw callback, or nil to only declare the consumers
//
// Returns:
//   - []Pass: the ordered passes
func StandardPasses(view camera.View, lights []light.PointLight, draw DrawFunc) []Pass {
	passes := []Pass{
		CullPass{Frustum: view.Frustum()},
		ClusterBuildPass{View: view},
		LightBinPass{Lights: lights},
	}
	for _, m := range common.MaterialTypes {
		passes = append(passes, MaterialDrawPass{Material: m, Draw: draw})
	}
	return passes
}
