package main

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-cluster/engine"
	"github.com/Carmen-Shannon/oxy-cluster/engine/config"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
)

// buildScene loads the configured models into e and places every instance on its row.
func buildScene(ctx context.Context, e engine.Engine, c config.Config) error {
	if _, err := e.BuildScene(ctx, c.Descriptors()); err != nil {
		return err
	}
	for mi, m := range c.Models {
		for i := range int(m.InstanceCount) {
			p := m.InstancePosition(i)
			if err := e.UpdateInstanceTransform(mi, i, mgl32.Translate3D(p.X(), p.Y(), p.Z())); err != nil {
				return err
			}
		}
	}
	return nil
}

// ringLights scatters count lights the way the configuration describes.
func ringLights(c config.Config, count int) []light.PointLight {
	return light.NewRingField(count,
		light.WithSeed(c.Lights.Seed),
		light.WithCenter(mgl32.Vec3(c.Lights.Center)),
		light.WithRingRadius(c.Lights.RingRadius),
		light.WithLightRadiusRange(c.Lights.MinRadius, c.Lights.MaxRadius),
	)
}
