// Package cluster builds the clustered forward+ light grid: a fixed X x Y x Z partition of the view
// frustum with logarithmic depth slices, the view-space AABB of every cluster, and the per-cluster
// light lists the shading stage reads.
package cluster

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

const (
	// DefaultSlicesX is the default number of screen tiles along x.
	DefaultSlicesX = 16
	// DefaultSlicesY is the default number of screen tiles along y.
	DefaultSlicesY = 9
	// DefaultSlicesZ is the default number of depth slices.
	DefaultSlicesZ = 24
	// DefaultMaxLightsPerCluster bounds the light list of one cluster.
	DefaultMaxLightsPerCluster = 150
	// DefaultMaxLights is the default capacity of the light buffer.
	DefaultMaxLights = 1024
)

// Grid is the cluster partition of the view frustum.
type Grid struct {
	X, Y, Z uint32
}

// DefaultGrid returns the 16 x 9 x 24 grid.
func DefaultGrid() Grid {
	return Grid{X: DefaultSlicesX, Y: DefaultSlicesY, Z: DefaultSlicesZ}
}

// Count returns the number of clusters.
func (g Grid) Count() int {
	return int(g.X) * int(g.Y) * int(g.Z)
}

// LinearID returns x + y*X + z*X*Y.
func (g Grid) LinearID(x, y, z uint32) uint32 {
	return x + y*g.X + z*g.X*g.Y
}

// Coords is the inverse of LinearID.
func (g Grid) Coords(id uint32) (x, y, z uint32) {
	return id % g.X, (id / g.X) % g.Y, id / (g.X * g.Y)
}

// Validate rejects grids with an empty dimension.
func (g Grid) Validate() error {
	if g.X == 0 || g.Y == 0 || g.Z == 0 {
		return fmt.Errorf("cluster: grid %dx%dx%d has an empty dimension: %w", g.X, g.Y, g.Z, common.ErrConfig)
	}
	return nil
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%dx%d", g.X, g.Y, g.Z)
}

// OverflowPolicy decides what happens when more lights touch a cluster than it can list.
type OverflowPolicy int

const (
	// OverflowClamp keeps the lowest-indexed MaxLightsPerCluster lights and drops the rest.
	OverflowClamp OverflowPolicy = iota
	// OverflowFail clamps the same way but makes ResolveBinning report common.ErrResourceExhausted.
	OverflowFail
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowClamp:
		return "clamp"
	case OverflowFail:
		return "fail"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy maps "clamp" or "fail" to its policy. The empty string is OverflowClamp.
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "clamp", "":
		return OverflowClamp, true
	case "fail":
		return OverflowFail, true
	}
	return OverflowClamp, false
}

// SliceParams maps view depth to a depth slice: slice = floor(log2(depth) * Scaling + Bias).
type SliceParams struct {
	Slices    uint32
	Near, Far float32
	Scaling   float32
	Bias      float32
}

// NewSliceParams derives the logarithmic slice mapping of a depth range.
//
// Parameters:
//   - slices: the number of depth slices Z
//   - near: the near plane distance, > 0
//   - far: the far plane distance, > near
//
// Returns:
//   - SliceParams: Scaling = Z / log2(far/near) and Bias = -Z log2(near) / log2(far/near)
//   - error: an error wrapping common.ErrConfig for an invalid range
func NewSliceParams(slices uint32, near, far float32) (SliceParams, error) {
	if slices == 0 || !(near > 0) || !(far > near) {
		return SliceParams{}, fmt.Errorf("cluster: %d slices over [%v, %v]: %w", slices, near, far, common.ErrConfig)
	}
	logRatio := math32.Log2(far / near)
	return SliceParams{
		Slices:  slices,
		Near:    near,
		Far:     far,
		Scaling: float32(slices) / logRatio,
		Bias:    -float32(slices) * math32.Log2(near) / logRatio,
	}, nil
}

// ClusterZ returns the depth slice containing a positive view depth, clamped to [0, Z-1].
func (p SliceParams) ClusterZ(depth float32) uint32 {
	if !(depth > 0) {
		return 0
	}
	s := math32.Floor(math32.Log2(depth)*p.Scaling + p.Bias)
	return uint32(common.Clamp(s, 0, float32(p.Slices-1)))
}

// SliceDepth returns the view depth where slice k begins: near * (far/near)^(k/Z).
// SliceDepth(Z) is the far plane.
func (p SliceParams) SliceDepth(k uint32) float32 {
	return p.Near * math32.Pow(p.Far/p.Near, float32(k)/float32(p.Slices))
}

// ClusterAABB computes the view-space box of cluster (x, y, z): the min/max of the four tile-corner
// rays from the eye, reconstructed through the inverse projection, cut at the slice's near and far
// depths. The view looks down -Z, so the box spans negative z.
//
// Parameters:
//   - invProj: the inverse projection matrix
//   - grid: the cluster grid
//   - slices: the depth slice mapping
//   - x, y, z: the cluster coordinates
//
// Returns:
//   - common.BoundingBox: the view-space box
func ClusterAABB(invProj mgl32.Mat4, grid Grid, slices SliceParams, x, y, z uint32) common.BoundingBox {
	zNear := slices.SliceDepth(z)
	zFar := slices.SliceDepth(z + 1)

	var points [8]mgl32.Vec3
	n := 0
	for _, cx := range [2]uint32{x, x + 1} {
		for _, cy := range [2]uint32{y, y + 1} {
			// Tile rows count down from the top of the screen.
			ndc := mgl32.Vec4{
				-1 + 2*float32(cx)/float32(grid.X),
				1 - 2*float32(cy)/float32(grid.Y),
				0,
				1,
			}
			dir := common.Unproject(invProj, ndc)
			points[n] = lineAtDepth(dir, zNear)
			points[n+1] = lineAtDepth(dir, zFar)
			n += 2
		}
	}
	return common.NewBoundingBox(points[:])
}

// lineAtDepth returns the point of the eye ray through p at view depth d (z = -d).
func lineAtDepth(p mgl32.Vec3, d float32) mgl32.Vec3 {
	return p.Mul(-d / p.Z())
}
