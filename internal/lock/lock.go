// Package lock implements the distributed lock / leasing protocol (C3):
// conditional acquire, release, and force-release of per-work-order
// leases. The interface shape is grounded on internal/pkg/distlock's
// DistLock (Acquire/Release), but the primitive is retargeted from a
// side-channel Redis/Postgres key onto the work order's own
// (locked, lockedBy, updatedAt) fields, conditionally updated in DynamoDB —
// because the lease here is a field on the leased record itself, not an
// independent resource.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	smithy "github.com/aws/smithy-go"

	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// ErrLockDenied names the case where another agent already holds the
// lease. Acquire reports that case as (false, nil) and does not return
// this error.
var ErrLockDenied = errors.New("lock: denied, already held")

// Manager acquires, releases, and force-releases per-work-order leases via
// conditional DynamoDB writes on the work order's locked/lockedBy fields.
//
// There is deliberately no TTL/lease-expiry field (spec.md §9): a held
// lease is exactly locked=true, and recovery from an abandoned lease is
// exclusively through ReleaseAll at agent startup. A disciplined future
// revision could add a lockedAt timestamp and force-release entries older
// than a lease TTL; that upgrade is intentionally not implemented here.
type Manager struct {
	dynamo    *dynamodb.Client
	tableName string
}

// NewManager constructs a Manager over the work-order table.
func NewManager(dynamo *dynamodb.Client, tableName string) *Manager {
	return &Manager{dynamo: dynamo, tableName: tableName}
}

// Acquire conditionally sets locked=true, lockedBy=agentID on the work
// order with the given id, succeeding only if the item is not already
// locked. Returns (false, nil) — not an error — if another agent holds it.
func (m *Manager) Acquire(ctx context.Context, id, agentID string) (bool, error) {
	_, err := m.dynamo.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "WORKORDER#" + id},
			"SK": &types.AttributeValueMemberS{Value: "WORKORDER#" + id},
		},
		UpdateExpression:    aws.String("SET payload.locked = :true, payload.lockedBy = :agent, updatedAt = :now"),
		ConditionExpression: aws.String("attribute_not_exists(payload.locked) OR payload.locked = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":agent": &types.AttributeValueMemberS{Value: agentID},
			":now":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return false, nil
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("lock: acquire %s: %w", id, err)
	}
	return true, nil
}

// Release unconditionally clears locked/lockedBy; safe to call multiple
// times (idempotent per spec.md §4.3).
func (m *Manager) Release(ctx context.Context, id string) error {
	_, err := m.dynamo.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "WORKORDER#" + id},
			"SK": &types.AttributeValueMemberS{Value: "WORKORDER#" + id},
		},
		UpdateExpression: aws.String("SET payload.locked = :false, payload.lockedBy = :empty, updatedAt = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":empty": &types.AttributeValueMemberS{Value: ""},
			":now":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", id, err)
	}
	return nil
}

// ReleaseAll releases the lease of every locked work order in all (the
// caller's scan of the table) whose state is not in exceptStates, used at
// agent startup to
// recover leases abandoned by a dead agent (spec.md §4.3, §4.9). Sleeping
// work orders are deliberately left locked: their owning agent continues
// conceptually to be the one that parked them. It returns the count of
// leases released.
func (m *Manager) ReleaseAll(ctx context.Context, all []*workorder.WorkOrder, exceptStates ...string) (int, error) {
	except := make(map[string]bool, len(exceptStates))
	for _, s := range exceptStates {
		except[s] = true
	}

	released := 0
	for _, wo := range all {
		if !shouldRelease(wo, except) {
			continue
		}
		if err := m.Release(ctx, wo.ID); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

// shouldRelease reports whether ReleaseAll should clear wo's lease: it must
// currently be locked and not be in one of the excepted states.
func shouldRelease(wo *workorder.WorkOrder, except map[string]bool) bool {
	if !wo.Locked {
		return false
	}
	return !except[wo.State]
}
