// Command weatherseverity counts accidents per state, severity and one of the
// five most frequent weather conditions.
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
	code := app.Run(ctx, pipeline.WeatherSeverityName)
	stop()
	os.Exit(code)
}
