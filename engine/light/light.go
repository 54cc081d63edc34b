// Package light describes the point lights that are binned into the cluster grid.
package light

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

// PointLight emits in all directions from Position and contributes nothing beyond Radius.
type PointLight struct {
	Position  mgl32.Vec3
	Radius    float32
	Color     mgl32.Vec3
	Intensity float32
}

// NewPointLight creates a white light of intensity 1.
//
// Parameters:
//   - position: world-space position
//   - radius: radius of influence
//
// Returns:
//   - PointLight: the light
func NewPointLight(position mgl32.Vec3, radius float32) PointLight {
	return PointLight{Position: position, Radius: radius, Color: mgl32.Vec3{1, 1, 1}, Intensity: 1}
}

// Bounds returns the axis-aligned box enclosing the light's sphere of influence.
func (l PointLight) Bounds() common.BoundingBox {
	r := mgl32.Vec3{l.Radius, l.Radius, l.Radius}
	return common.BoundingBox{Min: l.Position.Sub(r), Max: l.Position.Add(r)}
}

// Validate reports a negative or NaN radius.
func (l PointLight) Validate() error {
	if !(l.Radius >= 0) {
		return fmt.Errorf("light: radius %v: %w", l.Radius, common.ErrConfig)
	}
	return nil
}
