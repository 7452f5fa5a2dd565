package forwarder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/quiltdata/benchling-webhook-sub011/internal/circuitbreaker"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
)

// sqsAPI is the slice of the SQS client the forwarder uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// snsAPI is the slice of the SNS client the forwarder uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

// AWSForwarder implements the Forwarder interface for AWS SQS and SNS.
// Publishes run inside a circuit breaker; health checks go directly to
// the destination.
type AWSForwarder struct {
	config    *Config
	sqsClient sqsAPI
	snsClient snsAPI
	breaker   *circuitbreaker.GoBreakerAdapter
	logger    logging.Logger
}

// New creates an AWS forwarder for the configured destination. Static
// credentials are used when configured, otherwise the SDK's default chain
// applies (environment, shared config, IAM role).
func New(ctx context.Context, config *Config, logger logging.Logger) (*AWSForwarder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to load AWS config", err)
	}

	f := &AWSForwarder{
		config:    config,
		sqsClient: sqs.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		breaker:   circuitbreaker.NewGoBreaker("aws-forwarder", circuitbreaker.ForwarderConfig, logger),
		logger:    logger,
	}

	logger.Info("Event forwarding configured",
		logging.Field{"destination", config.GetConnectionString()},
	)

	return f, nil
}

// Publish sends the event to the configured SQS queue or SNS topic. The raw
// payload is the message body; delivery metadata travels as attributes so
// consumers can filter without parsing the payload.
func (f *AWSForwarder) Publish(ctx context.Context, event *Event) error {
	return f.breaker.Execute(ctx, func() error {
		if f.config.QueueURL != "" {
			return f.publishToSQS(ctx, event)
		}
		return f.publishToSNS(ctx, event)
	})
}

func (f *AWSForwarder) publishToSQS(ctx context.Context, event *Event) error {
	messageAttributes := make(map[string]types.MessageAttributeValue)

	if event.MessageID != "" {
		messageAttributes["MessageId"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(event.MessageID),
		}
	}

	if event.AppID != "" {
		messageAttributes["AppId"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(event.AppID),
		}
	}

	if event.SourceIP != "" {
		messageAttributes["SourceIp"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(event.SourceIP),
		}
	}

	messageAttributes["Timestamp"] = types.MessageAttributeValue{
		DataType:    aws.String("Number"),
		StringValue: aws.String(strconv.FormatInt(event.ReceivedAt.UnixNano(), 10)),
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(f.config.QueueURL),
		MessageBody:       aws.String(string(event.Body)),
		MessageAttributes: messageAttributes,
	}

	result, err := f.sqsClient.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	f.logger.Info("Delivery forwarded to SQS",
		logging.Field{"message_id", event.MessageID},
		logging.Field{"sqs_message_id", aws.ToString(result.MessageId)},
		logging.Field{"queue_url", f.config.QueueURL},
	)
	return nil
}

func (f *AWSForwarder) publishToSNS(ctx context.Context, event *Event) error {
	messageAttributes := make(map[string]snsTypes.MessageAttributeValue)

	if event.MessageID != "" {
		messageAttributes["MessageId"] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(event.MessageID),
		}
	}

	if event.AppID != "" {
		messageAttributes["AppId"] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(event.AppID),
		}
	}

	if event.SourceIP != "" {
		messageAttributes["SourceIp"] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(event.SourceIP),
		}
	}

	messageAttributes["Timestamp"] = snsTypes.MessageAttributeValue{
		DataType:    aws.String("Number"),
		StringValue: aws.String(strconv.FormatInt(event.ReceivedAt.UnixNano(), 10)),
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(f.config.TopicArn),
		Message:           aws.String(string(event.Body)),
		MessageAttributes: messageAttributes,
	}

	result, err := f.snsClient.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to publish message to SNS: %w", err)
	}

	f.logger.Info("Delivery forwarded to SNS",
		logging.Field{"message_id", event.MessageID},
		logging.Field{"sns_message_id", aws.ToString(result.MessageId)},
		logging.Field{"topic_arn", f.config.TopicArn},
	)
	return nil
}

// Health checks that the configured destination is reachable by reading its
// attributes. The check does not go through the circuit breaker.
func (f *AWSForwarder) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if f.config.QueueURL != "" {
		input := &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(f.config.QueueURL),
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
		}

		_, err := f.sqsClient.GetQueueAttributes(ctx, input)
		return err
	}

	input := &sns.GetTopicAttributesInput{
		TopicArn: aws.String(f.config.TopicArn),
	}

	_, err := f.snsClient.GetTopicAttributes(ctx, input)
	return err
}

// Close clears nothing; AWS SDK v2 clients don't require explicit closing.
func (f *AWSForwarder) Close() error {
	return nil
}
