// Command temporal aggregates accidents per state, weekday and hour, and per
// state and severity.
//
// Configuration is read from the environment; see internal/config.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alvdef/infoViz-8/internal/app"
	"github.com/alvdef/infoViz-8/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := app.Run(ctx, pipeline.TemporalName)
	stop()
	os.Exit(code)
}
