// Package storetest provides an in-memory fake of store.Store for tests,
// following internal/suppression/engine_test.go's preference for plain,
// dependency-free test fixtures over live AWS/SMTP.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// Fake is an in-memory Store.
type Fake struct {
	mu sync.Mutex

	WorkOrders map[string]*workorder.WorkOrder
	Students   map[string]store.Student
	Pools      map[string]store.Pool
	Prompts    []store.Prompt
	Stages     map[string]store.StageRecord
	Events     map[string]store.Event
	Creds      map[string]store.Credential
	Objects    map[string][]byte

	Messages []store.ReceivedMessage
	Deleted  []string
	Purged   bool

	DryrunLog map[string][]store.RecipientLogEntry
	SendLog   map[string][]store.RecipientLogEntry

	Subscriptions []store.PushSubscription
	Removed       []string

	// FailAppendSendRecipient, when true, makes AppendSendRecipient return
	// an error, for exercising the hard-error path (SPEC_FULL.md §9 (iii)).
	FailAppendSendRecipient bool
}

// New returns an empty Fake with all maps initialized.
func New() *Fake {
	return &Fake{
		WorkOrders: map[string]*workorder.WorkOrder{},
		Students:   map[string]store.Student{},
		Pools:      map[string]store.Pool{},
		Stages:     map[string]store.StageRecord{},
		Events:     map[string]store.Event{},
		Creds:      map[string]store.Credential{},
		Objects:    map[string][]byte{},
		DryrunLog:  map[string][]store.RecipientLogEntry{},
		SendLog:    map[string][]store.RecipientLogEntry{},
	}
}

var _ store.Store = (*Fake)(nil)

func (f *Fake) GetWorkOrder(ctx context.Context, id string) (*workorder.WorkOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wo, ok := f.WorkOrders[id]
	if !ok {
		return nil, fmt.Errorf("%w: work order %s", store.ErrNotFound, id)
	}
	cp := *wo
	return &cp, nil
}

func (f *Fake) UpdateWorkOrder(ctx context.Context, wo *workorder.WorkOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	wo.UpdatedAt = time.Now().UTC()
	cp := *wo
	f.WorkOrders[wo.ID] = &cp
	return nil
}

func (f *Fake) ScanStudents(ctx context.Context) ([]store.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Student, 0, len(f.Students))
	for _, s := range f.Students {
		out = append(out, s)
	}
	return out, nil
}

func (f *Fake) ScanPools(ctx context.Context) (map[string]store.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]store.Pool, len(f.Pools))
	for k, v := range f.Pools {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) ScanPrompts(ctx context.Context) ([]store.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Prompt, len(f.Prompts))
	copy(out, f.Prompts)
	return out, nil
}

func (f *Fake) GetStage(ctx context.Context, stage string) (*store.StageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.Stages[stage]
	if !ok {
		return nil, fmt.Errorf("%w: stage %s", store.ErrNotFound, stage)
	}
	return &rec, nil
}

func (f *Fake) GetEvent(ctx context.Context, code string) (*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.Events[code]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", store.ErrNotFound, code)
	}
	return &ev, nil
}

func (f *Fake) GetStudent(ctx context.Context, id string) (*store.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.Students[id]
	if !ok {
		return nil, fmt.Errorf("%w: student %s", store.ErrNotFound, id)
	}
	return &st, nil
}

func (f *Fake) UpdateStudentEmailSent(ctx context.Context, studentID, campaignString string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.Students[studentID]
	if !ok {
		return fmt.Errorf("%w: student %s", store.ErrNotFound, studentID)
	}
	if st.Emails == nil {
		st.Emails = map[string]string{}
	}
	st.Emails[campaignString] = at.UTC().Format(time.RFC3339)
	f.Students[studentID] = st
	return nil
}

func (f *Fake) UpdateEmbeddedEmail(ctx context.Context, eventCode, subEvent, stage, language, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.Events[eventCode]
	if !ok {
		return fmt.Errorf("%w: event %s", store.ErrNotFound, eventCode)
	}
	if ev.SubEvents == nil {
		ev.SubEvents = map[string]store.SubEvent{}
	}
	sub := ev.SubEvents[subEvent]
	if sub.EmbeddedEmails == nil {
		sub.EmbeddedEmails = map[string]map[string]string{}
	}
	if sub.EmbeddedEmails[stage] == nil {
		sub.EmbeddedEmails[stage] = map[string]string{}
	}
	sub.EmbeddedEmails[stage][language] = url
	ev.SubEvents[subEvent] = sub
	f.Events[eventCode] = ev
	return nil
}

func (f *Fake) GetCredential(ctx context.Context, account string) (*store.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Creds[account]
	if !ok {
		return nil, fmt.Errorf("%w: credential %s", store.ErrNotFound, account)
	}
	return &c, nil
}

func (f *Fake) GetObjectContent(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Objects[url]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", store.ErrNotFound, url)
	}
	return data, nil
}

func (f *Fake) PutObject(ctx context.Context, key string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "https://fake-bucket/" + key
	f.Objects[url] = data
	return url, nil
}

func (f *Fake) ReceiveMessages(ctx context.Context, maxMessages int, waitSecs int) ([]store.ReceivedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Messages) == 0 {
		return nil, nil
	}
	n := maxMessages
	if n > len(f.Messages) {
		n = len(f.Messages)
	}
	out := f.Messages[:n]
	f.Messages = f.Messages[n:]
	return out, nil
}

func (f *Fake) DeleteMessage(ctx context.Context, receiptHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, receiptHandle)
	return nil
}

func (f *Fake) PurgeQueue(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
	f.Purged = true
	return nil
}

func (f *Fake) AppendDryrunRecipient(ctx context.Context, campaignString string, entry store.RecipientLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DryrunLog[campaignString] = append(f.DryrunLog[campaignString], entry)
	return nil
}

func (f *Fake) DeleteDryrunRecipients(ctx context.Context, campaignString string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.DryrunLog, campaignString)
	return nil
}

func (f *Fake) AppendSendRecipient(ctx context.Context, campaignString string, entry store.RecipientLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAppendSendRecipient {
		return fmt.Errorf("%w: simulated append failure", store.ErrUnavailable)
	}
	f.SendLog[campaignString] = append(f.SendLog[campaignString], entry)
	return nil
}

func (f *Fake) CountEmailsSentByAccountInLast24h(ctx context.Context, account string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	since := time.Now().UTC().Add(-24 * time.Hour)
	count := 0
	for _, entries := range f.SendLog {
		for _, e := range entries {
			if e.Account == account && e.SendTime.After(since) {
				count++
			}
		}
	}
	return count, nil
}

func (f *Fake) ListPushSubscriptions(ctx context.Context) ([]store.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.PushSubscription, len(f.Subscriptions))
	copy(out, f.Subscriptions)
	return out, nil
}

func (f *Fake) RemovePushSubscription(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removed = append(f.Removed, id)
	kept := f.Subscriptions[:0]
	for _, s := range f.Subscriptions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.Subscriptions = kept
	return nil
}

func (f *Fake) ScanWorkOrderIDsByState(ctx context.Context, state string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id, wo := range f.WorkOrders {
		if wo.State == state {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *Fake) ScanAllWorkOrders(ctx context.Context) ([]*workorder.WorkOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*workorder.WorkOrder, 0, len(f.WorkOrders))
	for _, wo := range f.WorkOrders {
		cp := *wo
		out = append(out, &cp)
	}
	return out, nil
}
