package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ListPushSubscriptions returns every registered UI connection handle.
func (s *DynamoStore) ListPushSubscriptions(ctx context.Context) ([]PushSubscription, error) {
	var out []PushSubscription
	err := s.scanTable(ctx, s.tables.PushSubscriptions, func(item map[string]types.AttributeValue) error {
		var sub PushSubscription
		if err := attributevalue.UnmarshalMap(item, &sub); err != nil {
			return nil
		}
		out = append(out, sub)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemovePushSubscription prunes a dead subscription, called by
// internal/push when a delivery reports the subscriber is gone.
func (s *DynamoStore) RemovePushSubscription(ctx context.Context, id string) error {
	_, err := s.dynamo.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tables.PushSubscriptions),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: remove push subscription %s: %v", ErrUnavailable, id, err)
	}
	return nil
}
