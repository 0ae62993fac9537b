// Package store implements the KV/queue/object-store adapter (C1):
// typed operations against the work-order table, recipient tables, and
// command queue, hiding the DynamoDB/SQS/S3 wire format behind the Store
// interface.
package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/email-campaign-agent/internal/config"
)

// DynamoStore is the production Store implementation, backed by DynamoDB,
// SQS, and S3, grounded on internal/storage/aws.go's client wiring.
type DynamoStore struct {
	dynamo *dynamodb.Client
	sqs    *sqs.Client
	s3     *s3.Client

	queueURL string
	bucket   string
	prefix   string
	tables   config.TablesConfig
}

// New loads AWS configuration (region/profile, or the default credential
// chain when profile is empty, e.g. an IAM role on ECS) and constructs a
// DynamoStore.
func New(ctx context.Context, cfg config.Config) (*DynamoStore, error) {
	var awsCfg aws.Config
	var err error

	profile := cfg.Storage.GetAWSProfile()
	if profile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Storage.AWSRegion),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Storage.AWSRegion),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading AWS config: %w", err)
	}

	return &DynamoStore{
		dynamo:   dynamodb.NewFromConfig(awsCfg),
		sqs:      sqs.NewFromConfig(awsCfg),
		s3:       s3.NewFromConfig(awsCfg),
		queueURL: cfg.Queue.URL,
		bucket:   cfg.Storage.S3Bucket,
		prefix:   cfg.Storage.S3Prefix,
		tables:   cfg.Tables,
	}, nil
}

var _ Store = (*DynamoStore)(nil)

// Dynamo returns the underlying DynamoDB client, so internal/lock can share
// the same connection/credential configuration for its conditional writes
// against the work-order table rather than constructing a second client.
func (s *DynamoStore) Dynamo() *dynamodb.Client {
	return s.dynamo
}

// WorkOrdersTable returns the configured work-order table name, for
// internal/lock.
func (s *DynamoStore) WorkOrdersTable() string {
	return s.tables.WorkOrders
}
