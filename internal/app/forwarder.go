package app

import (
	"context"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/forwarder"
)

// initializeForwarder builds the AWS forwarder when forwarding is
// enabled. Enabled forwarding that cannot initialize fails startup.
func (app *App) initializeForwarder() error {
	if !app.Config.ForwardingEnabled {
		app.Logger.Info("Event forwarding: Disabled")
		return nil
	}

	forwarderConfig := &forwarder.Config{
		Region:          app.Config.AWSRegion,
		AccessKeyID:     app.Config.AWSAccessKeyID,
		SecretAccessKey: app.Config.AWSSecretAccessKey,
		SessionToken:    app.Config.AWSSessionToken,
		QueueURL:        app.Config.SQSQueueURL,
		TopicArn:        app.Config.SNSTopicArn,
	}

	fwd, err := forwarder.New(context.Background(), forwarderConfig, app.Logger)
	if err != nil {
		return err
	}

	app.Forwarder = fwd
	app.Logger.Info("Event forwarding: Enabled",
		logging.Field{Key: "destination", Value: forwarderConfig.GetConnectionString()})

	return nil
}
