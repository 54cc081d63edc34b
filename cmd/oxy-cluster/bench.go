package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/chewxy/math32"
	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-cluster/engine"
	"github.com/Carmen-Shannon/oxy-cluster/engine/frame"
)

type benchOptions struct {
	start  int
	factor float32
	frames int
	budget time.Duration
}

func newBenchCommand(root *rootOptions) *cobra.Command {
	opts := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Ramp the light count until light binning exceeds its time budget",
		Long: "bench renders the configured scene in steps. Each step multiplies the light count by\n" +
			"--factor and renders --frames frames; the ramp stops when the mean light binning time of a\n" +
			"step exceeds --budget or the count reaches the configured light limit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, root, opts)
		},
	}
	cmd.Flags().IntVar(&opts.start, "start", 64, "light count of the first step")
	cmd.Flags().Float32Var(&opts.factor, "factor", 1.5, "light count multiplier per step")
	cmd.Flags().IntVar(&opts.frames, "frames", 4, "frames rendered per step")
	cmd.Flags().DurationVar(&opts.budget, "budget", 4*time.Millisecond, "mean light binning time that ends the ramp")
	return cmd
}

// benchStep accumulates the pass timings of one ramp step.
type benchStep struct {
	frames   int
	total    map[frame.PassKind]time.Duration
	maxCount uint32
	overflow uint32
}

func (s *benchStep) mean(k frame.PassKind) time.Duration {
	if s.frames == 0 {
		return 0
	}
	return s.total[k] / time.Duration(s.frames)
}

func runBench(cmd *cobra.Command, root *rootOptions, opts *benchOptions) error {
	if opts.start < 1 || opts.factor <= 1 || opts.frames < 1 {
		return fmt.Errorf("bench: need start >= 1, factor > 1 and frames >= 1")
	}
	c, err := root.load(cmd)
	if err != nil {
		return err
	}

	var step *benchStep
	e, err := engine.NewEngine(
		engine.WithConfig(c),
		engine.WithFrameReadback(true),
		engine.WithFrameCallback(func(s engine.FrameStats) {
			step.frames++
			for _, t := range s.Timings {
				step.total[t.Kind] += t.Duration
			}
			if s.Bins != nil {
				step.maxCount = max(step.maxCount, s.Bins.MaxCount)
				step.overflow = max(step.overflow, s.Bins.OverflowClusters)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer e.Release()

	if err := buildScene(cmd.Context(), e, c); err != nil {
		return err
	}
	view := engine.CameraFromConfig(c).View()

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(out, "LIGHTS\tCULL\tGRID\tBINNING\tMAX/CLUSTER\tOVERFLOW")
	for count := opts.start; count <= c.Cluster.MaxLights; {
		lights := ringLights(c, count)
		step = &benchStep{total: make(map[frame.PassKind]time.Duration)}
		err := e.Run(cmd.Context(), func(n uint64, _ float32) (engine.FrameInput, bool) {
			return engine.FrameInput{View: view, Lights: lights}, n < uint64(opts.frames)
		})
		if err != nil {
			return err
		}
		binning := step.mean(frame.PassKindLightBin)
		fmt.Fprintf(out, "%d\t%v\t%v\t%v\t%d\t%d\n", count,
			step.mean(frame.PassKindCull), step.mean(frame.PassKindClusterBuild), binning, step.maxCount, step.overflow)
		if binning > opts.budget || cmd.Context().Err() != nil {
			break
		}

		// Grow by at least one light so small starts still ramp.
		count = max(count+1, int(math32.Ceil(float32(count)*opts.factor)))
	}
	return out.Flush()
}
