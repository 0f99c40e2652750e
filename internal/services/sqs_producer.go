package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/lockwhz/iac-analytics-service/internal/logger"
	"github.com/lockwhz/iac-analytics-service/models"
)

// SQSAPI is the part of *sqs.Client the producer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

var _ SQSAPI = (*sqs.Client)(nil)

// DefaultSQSProducer long-polls the jobs queue and emits decoded jobs.
type DefaultSQSProducer struct {
	Client   SQSAPI
	QueueURL string
	// Defaults: 10 messages, 20s wait, 5s pause after a receive error.
	MaxMessages     int32
	WaitTimeSeconds int32
	ErrorBackoff    time.Duration
}

// Start polls until ctx is done, then closes the returned channel.
// A message is deleted once its job has been handed to a consumer; malformed
// messages are logged and deleted so they are not redelivered forever.
func (p *DefaultSQSProducer) Start(ctx context.Context) <-chan *models.IacJob {
	jobs := make(chan *models.IacJob)

	maxMessages, wait, backoff := p.MaxMessages, p.WaitTimeSeconds, p.ErrorBackoff
	if maxMessages <= 0 {
		maxMessages = 10
	}
	if wait <= 0 {
		wait = 20
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}

	go func() {
		defer close(jobs)
		for ctx.Err() == nil {
			out, err := p.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(p.QueueURL),
				MaxNumberOfMessages: maxMessages,
				WaitTimeSeconds:     wait,
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Log.Errorf("SQSProducer: receive from %s: %v", p.QueueURL, err)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, msg := range out.Messages {
				var job models.IacJob
				if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &job); err != nil {
					logger.Log.Errorf("SQSProducer: discarding malformed message %s: %v", aws.ToString(msg.MessageId), err)
					p.delete(ctx, msg.ReceiptHandle)
					continue
				}

				select {
				case jobs <- &job:
				case <-ctx.Done():
					return
				}
				p.delete(ctx, msg.ReceiptHandle)
			}
		}
	}()

	return jobs
}

func (p *DefaultSQSProducer) delete(ctx context.Context, receiptHandle *string) {
	_, err := p.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.QueueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		logger.Log.Errorf("SQSProducer: delete message: %v", err)
	}
}
