package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/lockwhz/iac-analytics-service/internal/logger"
)

// SQSSender is the part of *sqs.Client used to publish.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends each event as one JSON message.
type SQSPublisher struct {
	Client   SQSSender
	QueueURL string
}

var _ Publisher = (*SQSPublisher)(nil)

func (p *SQSPublisher) Publish(ctx context.Context, event Event) error {
	defer logger.Trace("SQSPublisher.Publish", time.Now())

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	out, err := p.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event-id": {DataType: aws.String("String"), StringValue: aws.String(event.ID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("send event %s: %w", event.ID, err)
	}
	logger.Log.Debugf("SQSPublisher: event %s sent as message %s", event.ID, aws.ToString(out.MessageId))
	return nil
}
