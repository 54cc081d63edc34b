package light

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ringField scatters lights in a vertical cylinder around the Y axis.
type ringField struct {
	seed                 uint64
	center               mgl32.Vec3
	maxRingRadius        float32
	minHeight, maxHeight float32
	minRadius, maxRadius float32
	intensity            float32
}

// RingFieldOption configures NewRingField.
type RingFieldOption func(*ringField)

// WithSeed sets the random seed. Equal seeds give equal fields.
//
// Parameters:
//   - seed: the seed
//
// Returns:
//   - RingFieldOption: a function that applies the seed option
func WithSeed(seed uint64) RingFieldOption {
	return func(f *ringField) {
		f.seed = seed
	}
}

// WithCenter moves the field away from the origin.
//
// Parameters:
//   - center: the base center of the cylinder
//
// Returns:
//   - RingFieldOption: a function that applies the center option
func WithCenter(center mgl32.Vec3) RingFieldOption {
	return func(f *ringField) {
		f.center = center
	}
}

// WithRingRadius sets the maximum horizontal distance of a light from the center.
//
// Parameters:
//   - r: the cylinder radius
//
// Returns:
//   - RingFieldOption: a function that applies the ring radius option
func WithRingRadius(r float32) RingFieldOption {
	return func(f *ringField) {
		f.maxRingRadius = r
	}
}

// WithHeightRange sets the vertical spread of the field relative to the center.
//
// Parameters:
//   - minHeight, maxHeight: the height bounds
//
// Returns:
//   - RingFieldOption: a function that applies the height option
func WithHeightRange(minHeight, maxHeight float32) RingFieldOption {
	return func(f *ringField) {
		f.minHeight, f.maxHeight = minHeight, maxHeight
	}
}

// WithLightRadiusRange sets the bounds of each light's radius of influence.
//
// Parameters:
//   - minRadius, maxRadius: the radius bounds
//
// Returns:
//   - RingFieldOption: a function that applies the radius option
func WithLightRadiusRange(minRadius, maxRadius float32) RingFieldOption {
	return func(f *ringField) {
		f.minRadius, f.maxRadius = minRadius, maxRadius
	}
}

// NewRingField generates count lights with random positions inside a cylinder of radius 10 and
// height [-2, 10] around the center, random colors and radii in [0.5, 2].
//
// Parameters:
//   - count: the number of lights
//   - options: RingFieldOption values
//
// Returns:
//   - []PointLight: the generated lights
func NewRingField(count int, options ...RingFieldOption) []PointLight {
	f := &ringField{
		seed:          1,
		maxRingRadius: 10,
		minHeight:     -2,
		maxHeight:     10,
		minRadius:     0.5,
		maxRadius:     2,
		intensity:     1,
	}
	for _, option := range options {
		option(f)
	}

	rng := rand.New(rand.NewPCG(f.seed, f.seed^0x9e3779b97f4a7c15))
	between := func(lo, hi float32) float32 {
		return lo + rng.Float32()*(hi-lo)
	}

	lights := make([]PointLight, count)
	for i := range lights {
		y := between(f.minHeight, f.maxHeight)
		r := between(0, f.maxRingRadius)
		angle := between(0, 2*math32.Pi)
		lights[i] = PointLight{
			Position:  f.center.Add(mgl32.Vec3{math32.Cos(angle) * r, y, math32.Sin(angle) * r}),
			Color:     mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()},
			Radius:    between(f.minRadius, f.maxRadius),
			Intensity: f.intensity,
		}
	}
	return lights
}
