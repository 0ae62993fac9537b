package store

import (
	"context"
	"time"

	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// Store is the narrow capability surface over the durable store, command
// queue, and object store described in SPEC_FULL.md §4.1. Production code
// is wired against this interface rather than *DynamoStore directly, so
// tests can substitute an in-memory fake (see store/storetest).
type Store interface {
	GetWorkOrder(ctx context.Context, id string) (*workorder.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, wo *workorder.WorkOrder) error

	ScanStudents(ctx context.Context) ([]Student, error)
	ScanPools(ctx context.Context) (map[string]Pool, error)
	ScanPrompts(ctx context.Context) ([]Prompt, error)
	GetStage(ctx context.Context, stage string) (*StageRecord, error)
	GetEvent(ctx context.Context, code string) (*Event, error)
	GetStudent(ctx context.Context, id string) (*Student, error)
	UpdateStudentEmailSent(ctx context.Context, studentID, campaignString string, at time.Time) error
	UpdateEmbeddedEmail(ctx context.Context, eventCode, subEvent, stage, language, url string) error

	GetCredential(ctx context.Context, account string) (*Credential, error)

	GetObjectContent(ctx context.Context, url string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte) (string, error)

	ReceiveMessages(ctx context.Context, maxMessages int, waitSecs int) ([]ReceivedMessage, error)
	DeleteMessage(ctx context.Context, receiptHandle string) error
	PurgeQueue(ctx context.Context) error

	AppendDryrunRecipient(ctx context.Context, campaignString string, entry RecipientLogEntry) error
	DeleteDryrunRecipients(ctx context.Context, campaignString string) error
	AppendSendRecipient(ctx context.Context, campaignString string, entry RecipientLogEntry) error
	CountEmailsSentByAccountInLast24h(ctx context.Context, account string) (int, error)

	ListPushSubscriptions(ctx context.Context) ([]PushSubscription, error)
	RemovePushSubscription(ctx context.Context, id string) error

	ScanWorkOrderIDsByState(ctx context.Context, state string) ([]string, error)
	ScanAllWorkOrders(ctx context.Context) ([]*workorder.WorkOrder, error)
}
