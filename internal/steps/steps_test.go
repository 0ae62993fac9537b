package steps

import (
	"context"
	"sync"

	"github.com/ignite/email-campaign-agent/internal/executor"
)

// fakeTemplates is an in-memory executor.TemplateFetcher for tests.
type fakeTemplates struct {
	byName map[string][]byte
}

func (f *fakeTemplates) GetTemplate(ctx context.Context, name string) ([]byte, error) {
	html, ok := f.byName[name]
	if !ok {
		return nil, errNotFound
	}
	return html, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "steps test: template not found" }

// fakeSender is an in-memory executor.Sender recording every submission.
type fakeSender struct {
	mu   sync.Mutex
	sent []executor.SendMessage
	fail error
}

func (f *fakeSender) Send(ctx context.Context, msg executor.SendMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
