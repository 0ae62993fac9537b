package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// GetCredential fetches the SMTP credential for account. The caller
// (internal/credentials) is responsible for the process-local cache; this
// method always reads through to the store.
func (s *DynamoStore) GetCredential(ctx context.Context, account string) (*Credential, error) {
	out, err := s.dynamo.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Credentials),
		Key: map[string]types.AttributeValue{
			"account": &types.AttributeValueMemberS{Value: account},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get credential %s: %v", ErrUnavailable, account, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: credential %s", ErrNotFound, account)
	}
	var cred Credential
	if err := attributevalue.UnmarshalMap(out.Item, &cred); err != nil {
		return nil, fmt.Errorf("%w: decode credential %s: %v", ErrUnavailable, account, err)
	}
	return &cred, nil
}
