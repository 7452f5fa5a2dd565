package forwarder

import (
	"fmt"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/validation"
)

// Config holds the AWS forwarding settings. Exactly one destination is used:
// the SQS queue when QueueURL is set, otherwise the SNS topic.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string // Optional for temporary credentials
	QueueURL        string // For SQS
	TopicArn        string // For SNS
}

func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("AWS config")

	v.RequireString(c.Region, "region")

	// Either QueueURL or TopicArn is required
	if c.QueueURL == "" && c.TopicArn == "" {
		v.Validate(func() error {
			return fmt.Errorf("either QueueURL (for SQS) or TopicArn (for SNS) is required")
		})
	}

	// Static credentials are optional since the default chain covers IAM
	// roles, but a partial pair is always a deployment mistake
	v.ValidateIf(c.AccessKeyID != "" || c.SecretAccessKey != "", func() error {
		if c.AccessKeyID == "" || c.SecretAccessKey == "" {
			return fmt.Errorf("access_key_id and secret_access_key must be set together")
		}
		return nil
	})

	return v.Error()
}

// GetConnectionString describes the configured destination for logs.
func (c *Config) GetConnectionString() string {
	if c.QueueURL != "" {
		return fmt.Sprintf("sqs://%s/%s", c.Region, c.QueueURL)
	}
	if c.TopicArn != "" {
		return fmt.Sprintf("sns://%s/%s", c.Region, c.TopicArn)
	}
	return fmt.Sprintf("aws://%s", c.Region)
}
