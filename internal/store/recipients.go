package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// recipientLogItem is the on-disk shape of a dry-run or send recipient log
// row: one row per campaign string, an append-only entries list.
type recipientLogItem struct {
	CampaignString string              `dynamodbav:"campaignString"`
	Entries        []RecipientLogEntry `dynamodbav:"entries"`
}

func (s *DynamoStore) appendRecipient(ctx context.Context, tableName, campaignString string, entry RecipientLogEntry) error {
	entryAV, err := attributevalue.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode recipient entry: %v", ErrUnavailable, err)
	}

	_, err = s.dynamo.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(tableName),
		Key: map[string]types.AttributeValue{
			"campaignString": &types.AttributeValueMemberS{Value: campaignString},
		},
		UpdateExpression: aws.String("SET entries = list_append(if_not_exists(entries, :empty), :entry)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":entry": &types.AttributeValueMemberL{Value: []types.AttributeValue{entryAV}},
			":empty":  &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: append recipient to %s: %v", ErrUnavailable, tableName, err)
	}
	return nil
}

// AppendDryrunRecipient appends an entry to the dry-run recipient log for
// campaignString.
func (s *DynamoStore) AppendDryrunRecipient(ctx context.Context, campaignString string, entry RecipientLogEntry) error {
	return s.appendRecipient(ctx, s.tables.DryrunRecipients, campaignString, entry)
}

// DeleteDryrunRecipients truncates the dry-run recipient log for
// campaignString, called before each language pass per SPEC_FULL.md §4.7.
func (s *DynamoStore) DeleteDryrunRecipients(ctx context.Context, campaignString string) error {
	_, err := s.dynamo.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tables.DryrunRecipients),
		Key: map[string]types.AttributeValue{
			"campaignString": &types.AttributeValueMemberS{Value: campaignString},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: truncate dryrun recipients %s: %v", ErrUnavailable, campaignString, err)
	}
	return nil
}

// AppendSendRecipient appends an entry to the send recipient audit log.
// Per SPEC_FULL.md §9 Open Question (iii), failures here are returned as
// hard errors rather than logged and swallowed.
func (s *DynamoStore) AppendSendRecipient(ctx context.Context, campaignString string, entry RecipientLogEntry) error {
	return s.appendRecipient(ctx, s.tables.SendRecipients, campaignString, entry)
}

// CountEmailsSentByAccountInLast24h scans the send-recipient log for
// entries attributed to account within the last 24 hours. Production
// deployments would back this with an account+sendtime index; the scan
// here is the adapter's reference implementation over the same table
// shape, matching the teacher's scan-then-filter style in
// internal/storage/aws.go.
func (s *DynamoStore) CountEmailsSentByAccountInLast24h(ctx context.Context, account string) (int, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)

	var count int
	var startKey map[string]types.AttributeValue
	for {
		page, err := s.dynamo.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tables.SendRecipients),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, fmt.Errorf("%w: scan send recipients: %v", ErrUnavailable, err)
		}
		for _, item := range page.Items {
			var row recipientLogItem
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				continue
			}
			for _, e := range row.Entries {
				if e.Account == account && e.SendTime.After(since) {
					count++
				}
			}
		}
		if page.LastEvaluatedKey == nil {
			break
		}
		startKey = page.LastEvaluatedKey
	}
	return count, nil
}
