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

// scanTable performs a paginated full scan of tableName, invoking collect on
// each raw item; collect does its own decoding.
// Grounded on internal/storage/aws.go's Query/Scan + attributevalue.UnmarshalMap
// pattern, generalized to paginate with LastEvaluatedKey.
func (s *DynamoStore) scanTable(ctx context.Context, tableName string, collect func(item map[string]types.AttributeValue) error) error {
	var startKey map[string]types.AttributeValue
	for {
		page, err := s.dynamo.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return fmt.Errorf("%w: scan %s: %v", ErrUnavailable, tableName, err)
		}
		for _, item := range page.Items {
			if err := collect(item); err != nil {
				return err
			}
		}
		if page.LastEvaluatedKey == nil {
			return nil
		}
		startKey = page.LastEvaluatedKey
	}
}

// ScanStudents returns every student record.
func (s *DynamoStore) ScanStudents(ctx context.Context) ([]Student, error) {
	var out []Student
	err := s.scanTable(ctx, s.tables.Students, func(item map[string]types.AttributeValue) error {
		var st Student
		if err := attributevalue.UnmarshalMap(item, &st); err != nil {
			return nil // skip malformed rows rather than failing the whole scan
		}
		out = append(out, st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanPools returns every pool definition, keyed by name.
func (s *DynamoStore) ScanPools(ctx context.Context) (map[string]Pool, error) {
	out := make(map[string]Pool)
	err := s.scanTable(ctx, s.tables.Pools, func(item map[string]types.AttributeValue) error {
		var p Pool
		if err := attributevalue.UnmarshalMap(item, &p); err != nil {
			return nil
		}
		out[p.Name] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanPrompts returns every prompt row.
func (s *DynamoStore) ScanPrompts(ctx context.Context) ([]Prompt, error) {
	var out []Prompt
	err := s.scanTable(ctx, s.tables.Prompts, func(item map[string]types.AttributeValue) error {
		var p Prompt
		if err := attributevalue.UnmarshalMap(item, &p); err != nil {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetStage retrieves a single stage record by its primary key.
func (s *DynamoStore) GetStage(ctx context.Context, stage string) (*StageRecord, error) {
	out, err := s.dynamo.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Stages),
		Key: map[string]types.AttributeValue{
			"stage": &types.AttributeValueMemberS{Value: stage},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get stage %s: %v", ErrUnavailable, stage, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: stage %s", ErrNotFound, stage)
	}
	var rec StageRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode stage %s: %v", ErrUnavailable, stage, err)
	}
	return &rec, nil
}

// GetEvent retrieves the supplemental Event record (SPEC_FULL.md §3.1).
func (s *DynamoStore) GetEvent(ctx context.Context, code string) (*Event, error) {
	out, err := s.dynamo.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Events),
		Key: map[string]types.AttributeValue{
			"eventCode": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get event %s: %v", ErrUnavailable, code, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, code)
	}
	var ev Event
	if err := attributevalue.UnmarshalMap(out.Item, &ev); err != nil {
		return nil, fmt.Errorf("%w: decode event %s: %v", ErrUnavailable, code, err)
	}
	return &ev, nil
}

// GetStudent retrieves a single student by id.
func (s *DynamoStore) GetStudent(ctx context.Context, id string) (*Student, error) {
	out, err := s.dynamo.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Students),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get student %s: %v", ErrUnavailable, id, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, id)
	}
	var st Student
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return nil, fmt.Errorf("%w: decode student %s: %v", ErrUnavailable, id, err)
	}
	return &st, nil
}

// UpdateStudentEmailSent idempotently sets student.emails[campaignString]
// to at, the single field the core is permitted to write on the otherwise
// externally owned student table.
func (s *DynamoStore) UpdateStudentEmailSent(ctx context.Context, studentID, campaignString string, at time.Time) error {
	_, err := s.dynamo.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tables.Students),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: studentID},
		},
		UpdateExpression: aws.String("SET emails.#cs = :sentAt"),
		ExpressionAttributeNames: map[string]string{
			"#cs": campaignString,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sentAt": &types.AttributeValueMemberS{Value: at.UTC().Format(timeFormat)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: update student %s emails: %v", ErrUnavailable, studentID, err)
	}
	return nil
}

// UpdateEmbeddedEmail records url into the Event's per-sub-event,
// per-stage, per-language embedded-email map, the second half of
// Prepare's dual write (SPEC_FULL.md §4.7).
func (s *DynamoStore) UpdateEmbeddedEmail(ctx context.Context, eventCode, subEvent, stage, language, url string) error {
	_, err := s.dynamo.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tables.Events),
		Key: map[string]types.AttributeValue{
			"eventCode": &types.AttributeValueMemberS{Value: eventCode},
		},
		UpdateExpression: aws.String("SET subEvents.#se.embeddedEmails.#st.#lang = :url"),
		ExpressionAttributeNames: map[string]string{
			"#se":   subEvent,
			"#st":   stage,
			"#lang": language,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":url": &types.AttributeValueMemberS{Value: url},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: update event %s embedded email: %v", ErrUnavailable, eventCode, err)
	}
	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"
