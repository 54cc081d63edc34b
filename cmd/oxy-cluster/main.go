// oxy-cluster drives the clustered light pipeline headless and prints what the GPU passes
// produced: visible instances, rebuilt grids and per-cluster light counts.
//
// Commands:
//
//	simulate  - run frames of the configured scene with an orbiting camera
//	bench     - ramp the light count until binning exceeds a time budget
//	slices    - print the logarithmic depth slice table
//	config    - write the default configuration file
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
