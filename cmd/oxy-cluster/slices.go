package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
)

type slicesOptions struct {
	slices    uint32
	near, far float32
}

func newSlicesCommand(root *rootOptions) *cobra.Command {
	opts := &slicesOptions{}
	cmd := &cobra.Command{
		Use:   "slices",
		Short: "Print the view-space depth range of every cluster slice",
		Long: "slices prints the logarithmic depth partition used by the cluster grid. Flags that are\n" +
			"not set are taken from the configuration file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.load(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("slices") {
				opts.slices = c.Cluster.Slices[2]
			}
			if !cmd.Flags().Changed("near") {
				opts.near = c.Camera.Near
			}
			if !cmd.Flags().Changed("far") {
				opts.far = c.Camera.Far
			}

			p, err := cluster.NewSliceParams(opts.slices, opts.near, opts.far)
			if err != nil {
				return err
			}
			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(out, "scale %.4f\tbias %.4f\t\n", p.Scaling, p.Bias)
			fmt.Fprintln(out, "SLICE\tNEAR\tFAR\t")
			for k := range p.Slices {
				fmt.Fprintf(out, "%d\t%.4f\t%.4f\t\n", k, p.SliceDepth(k), p.SliceDepth(k+1))
			}
			return out.Flush()
		},
	}
	cmd.Flags().Uint32Var(&opts.slices, "slices", cluster.DefaultSlicesZ, "number of depth slices")
	cmd.Flags().Float32Var(&opts.near, "near", 0.1, "near clip distance")
	cmd.Flags().Float32Var(&opts.far, "far", 1000, "far clip distance")
	return cmd
}
