// Command statemonth aggregates accident counts and mean severity per state
// and calendar month into us_accidents_state_month.csv.
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
	code := app.Run(ctx, pipeline.StateMonthName)
	stop()
	os.Exit(code)
}
