package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-cluster/engine"
)

type simulateOptions struct {
	frames  int
	orbit   float32
	profile bool
	fps     float64
}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Render frames of the configured scene and print per-frame results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, root, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.frames, "frames", "n", 8, "number of frames to render")
	cmd.Flags().Float32Var(&opts.orbit, "orbit", 0, "camera azimuth change per frame in radians")
	cmd.Flags().BoolVar(&opts.profile, "profile", false, "log per-pass timing statistics")
	cmd.Flags().Float64Var(&opts.fps, "fps", 0, "frame rate cap (0 = uncapped)")
	return cmd
}

func runSimulate(cmd *cobra.Command, root *rootOptions, opts *simulateOptions) error {
	c, err := root.load(cmd)
	if err != nil {
		return err
	}

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(out, "FRAME\tSLOT\tVISIBLE\tGRID\tLIGHT REFS\tMAX/CLUSTER\tOVERFLOW")
	e, err := engine.NewEngine(
		engine.WithConfig(c),
		engine.WithFrameReadback(true),
		engine.WithProfiling(opts.profile),
		engine.WithRenderFrameLimit(opts.fps),
		engine.WithFrameCallback(func(s engine.FrameStats) { printFrame(out, s) }),
	)
	if err != nil {
		return err
	}
	defer e.Release()

	if err := buildScene(cmd.Context(), e, c); err != nil {
		return err
	}
	lights := ringLights(c, c.Lights.Count)
	cam := engine.CameraFromConfig(c)

	err = e.Run(cmd.Context(), func(n uint64, _ float32) (engine.FrameInput, bool) {
		if n >= uint64(opts.frames) {
			return engine.FrameInput{}, false
		}
		if n > 0 && opts.orbit != 0 {
			cam.Controller().Orbit(opts.orbit, 0)
			cam.Update()
		}
		return engine.FrameInput{View: cam.View(), Lights: lights}, true
	})
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	return err
}

func printFrame(w io.Writer, s engine.FrameStats) {
	grid := "kept"
	if s.ClusterRebuilt {
		grid = "built"
	}
	var refs, maxCount, overflow uint32
	if s.Bins != nil {
		refs, maxCount, overflow = s.Bins.Counter, s.Bins.MaxCount, s.Bins.OverflowClusters
	}
	fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%d\t%d\t%d\n", s.Frame, s.Slot, s.Visible, grid, refs, maxCount, overflow)
}
