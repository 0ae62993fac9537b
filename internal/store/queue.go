package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// ReceiveMessages long-polls the command queue, grounded on
// internal/tracking/consumer.go's ReceiveMessage shape. Malformed bodies
// are returned with Malformed=true rather than dropped here; the caller
// (internal/agentloop) is responsible for deleting them.
func (s *DynamoStore) ReceiveMessages(ctx context.Context, maxMessages int, waitSecs int) ([]ReceivedMessage, error) {
	out, err := s.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSecs),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: receive messages: %v", ErrUnavailable, err)
	}

	received := make([]ReceivedMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		var body Message
		malformed := false
		if m.Body == nil {
			malformed = true
		} else if err := json.Unmarshal([]byte(*m.Body), &body); err != nil {
			malformed = true
		} else if body.WorkOrderID == "" || body.StepName == "" || (body.Action != "start" && body.Action != "stop") {
			malformed = true
		}
		received = append(received, ReceivedMessage{
			Message:       body,
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Malformed:     malformed,
		})
	}
	return received, nil
}

// DeleteMessage removes a message from the queue by receipt handle.
func (s *DynamoStore) DeleteMessage(ctx context.Context, receiptHandle string) error {
	_, err := s.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("%w: delete message: %v", ErrUnavailable, err)
	}
	return nil
}

// PurgeQueue discards every command message accumulated while the agent
// was offline, per the startup sequence in SPEC_FULL.md §4.9.
func (s *DynamoStore) PurgeQueue(ctx context.Context) error {
	_, err := s.sqs.PurgeQueue(ctx, &sqs.PurgeQueueInput{
		QueueUrl: aws.String(s.queueURL),
	})
	if err != nil {
		return fmt.Errorf("%w: purge queue: %v", ErrUnavailable, err)
	}
	return nil
}
