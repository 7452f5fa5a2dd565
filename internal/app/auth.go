package app

import (
	"github.com/quiltdata/benchling-webhook-sub011/internal/auth"
)

func (app *App) initializeAuth() {
	// A nil *redis.Client assigned to the interface would not compare
	// equal to nil inside auth, keep the interface itself nil instead.
	var blacklist auth.RedisClient
	if app.RedisClient != nil {
		blacklist = app.RedisClient
	}

	app.Auth = auth.New(app.Storage, app.Config, blacklist)
}
