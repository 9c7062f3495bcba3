package events

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSEmitter delivers outbox entries onto the shared event queue. The
// event type and business key travel as message attributes so consumers
// can route without parsing the payload.
type SQSEmitter struct {
	client   sqsAPI
	queueURL string
}

// NewSQSEmitter creates an emitter around the provided SQS client.
func NewSQSEmitter(client *sqs.Client, queueURL string) *SQSEmitter {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSEmitter{client: client, queueURL: queueURL}
}

func newSQSEmitterWithAPI(api sqsAPI, queueURL string) *SQSEmitter {
	return &SQSEmitter{client: api, queueURL: queueURL}
}

// Handle implements DeliveryHandler.
func (e *SQSEmitter) Handle(ctx context.Context, entry OutboxEntry) error {
	_, err := e.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(e.queueURL),
		MessageBody: aws.String(string(entry.Payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.Type),
			},
			"business_key": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.BusinessKey),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("events: send SQS message: %w", err)
	}
	return nil
}
