package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// GetWorkOrder retrieves a work order by id.
func (s *DynamoStore) GetWorkOrder(ctx context.Context, id string) (*workorder.WorkOrder, error) {
	out, err := s.dynamo.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.WorkOrders),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "WORKORDER#" + id},
			"SK": &types.AttributeValueMemberS{Value: "WORKORDER#" + id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get work order %s: %v", ErrUnavailable, id, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: work order %s", ErrNotFound, id)
	}
	return workorder.UnmarshalAttributeValue(out.Item)
}

// UpdateWorkOrder persists the full work-order record, stamping updatedAt.
// Every successful call is expected to be wrapped by internal/push so UI
// subscribers are notified (SPEC_FULL.md §4.10); DynamoStore itself does
// not know about the push channel.
func (s *DynamoStore) UpdateWorkOrder(ctx context.Context, wo *workorder.WorkOrder) error {
	wo.UpdatedAt = time.Now().UTC()

	av, err := workorder.MarshalAttributeValue(wo)
	if err != nil {
		return fmt.Errorf("%w: encode work order %s: %v", ErrUnavailable, wo.ID, err)
	}

	_, err = s.dynamo.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.WorkOrders),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("%w: put work order %s: %v", ErrUnavailable, wo.ID, err)
	}
	return nil
}

// ScanWorkOrderIDsByState returns the ids of all work orders whose
// lifecycle state matches state (used at startup to rehydrate the sleep
// queue, SPEC_FULL.md §4.8).
func (s *DynamoStore) ScanWorkOrderIDsByState(ctx context.Context, state string) ([]string, error) {
	all, err := s.ScanAllWorkOrders(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, wo := range all {
		if wo.State == state {
			ids = append(ids, wo.ID)
		}
	}
	return ids, nil
}

// ScanAllWorkOrders returns every work order, used by ReleaseAll (C3) and
// sleep-queue rehydration (C8).
func (s *DynamoStore) ScanAllWorkOrders(ctx context.Context) ([]*workorder.WorkOrder, error) {
	var out []*workorder.WorkOrder
	var startKey map[string]types.AttributeValue

	for {
		page, err := s.dynamo.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tables.WorkOrders),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scan work orders: %v", ErrUnavailable, err)
		}
		for _, item := range page.Items {
			wo, err := workorder.UnmarshalAttributeValue(item)
			if err != nil {
				continue
			}
			out = append(out, wo)
		}
		if page.LastEvaluatedKey == nil {
			break
		}
		startKey = page.LastEvaluatedKey
	}
	return out, nil
}
