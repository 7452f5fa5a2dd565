package app

import (
	"net/http"
	"time"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/jwks"
	"github.com/quiltdata/benchling-webhook-sub011/internal/signature"
)

func (app *App) initializeVerifier() {
	timeout, _ := time.ParseDuration(app.Config.KeyFetchTimeout)
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	app.KeyClient = jwks.NewClient(app.Config.BenchlingBaseURL,
		&http.Client{Timeout: timeout}, app.Logger)

	app.Verifier = signature.NewVerifier(&signature.Config{
		AllowedSources: app.Config.AllowedSourceIPs,
	}, app.KeyClient, app.Logger)

	app.Logger.Info("Signature verification ready",
		logging.Field{Key: "key_endpoint", Value: app.Config.BenchlingBaseURL},
		logging.Field{Key: "source_filtering", Value: len(app.Config.AllowedSourceIPs) > 0},
	)
}
