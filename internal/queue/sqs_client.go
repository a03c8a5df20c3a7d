package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	defaultWaitSeconds = 20
	defaultBatchSize   = 10
)

// SQSAPI is the subset of the SQS client used by SQSConsumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConsumer long-polls an SQS queue fed by S3 event notifications.
type SQSConsumer struct {
	client            SQSAPI
	queueURL          string
	visibilitySeconds int32
}

// NewSQSConsumer constructs an SQS-backed consumer. visibilitySeconds <= 0 keeps the queue default.
func NewSQSConsumer(cfg aws.Config, queueURL string, visibilitySeconds int) (*SQSConsumer, error) {
	return NewSQSConsumerWithClient(sqs.NewFromConfig(cfg), queueURL, visibilitySeconds)
}

// NewSQSConsumerWithClient wraps an existing client.
func NewSQSConsumerWithClient(client SQSAPI, queueURL string, visibilitySeconds int) (*SQSConsumer, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("SPEECH_SQS_QUEUE_URL is required")
	}
	if visibilitySeconds < 0 {
		visibilitySeconds = 0
	}
	return &SQSConsumer{
		client:            client,
		queueURL:          queueURL,
		visibilitySeconds: int32(visibilitySeconds),
	}, nil
}

// Receive waits up to 20 seconds for a batch of messages.
func (s *SQSConsumer) Receive(ctx context.Context) ([]Delivery, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: defaultBatchSize,
		WaitTimeSeconds:     defaultWaitSeconds,
		VisibilityTimeout:   s.visibilitySeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	deliveries := make([]Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		deliveries = append(deliveries, Delivery{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			ReceiveCount:  parseReceiveCount(m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]),
		})
	}
	return deliveries, nil
}

// Delete acknowledges a delivery so it is not redelivered.
func (s *SQSConsumer) Delete(ctx context.Context, d Delivery) error {
	if d.ReceiptHandle == "" {
		return errors.New("missing receipt handle")
	}
	if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(d.ReceiptHandle),
	}); err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}

var _ Consumer = (*SQSConsumer)(nil)
