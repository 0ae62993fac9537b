// Package push implements the push notifier (C10): it fans a work order's
// full state out to every registered UI connection handle whenever it
// changes, and sends a heartbeat on a fixed interval. Wired as a
// store.Store decorator so every UpdateWorkOrder call triggers a publish
// automatically, per spec.md §4.1/§4.10. Start/Stop and the background
// goroutine shape are grounded on the teacher's
// internal/worker/campaign_processor.go; webhook delivery retries on
// transient failures through internal/pkg/httpretry, the teacher's own
// backoff-with-jitter HTTP client used elsewhere for external API calls.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/email-campaign-agent/internal/pkg/httpretry"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// HeartbeatInterval is how often Heartbeat fires once started.
const HeartbeatInterval = 60 * time.Second

// workOrderUpdateMessage is the payload pushed to every subscriber.
type workOrderUpdateMessage struct {
	Type      string               `json:"type"`
	WorkOrder *workorder.WorkOrder `json:"workOrder"`
}

// heartbeatMessage is the payload sent on HeartbeatInterval.
type heartbeatMessage struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

// Notifier decorates a store.Store, publishing every write to the
// registered push subscriptions.
type Notifier struct {
	store.Store

	client httpretry.HTTPDoer

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New wraps next with push notification; all other store.Store methods
// pass through to next unmodified. Webhook delivery goes through a
// retrying client: a subscriber's endpoint timing out or briefly 5xx-ing
// shouldn't drop an update, since the next broadcast could be minutes away.
func New(next store.Store) *Notifier {
	base := &http.Client{Timeout: 10 * time.Second}
	return &Notifier{Store: next, client: httpretry.NewRetryClient(base, 3)}
}

// UpdateWorkOrder persists wo through the wrapped store, then publishes its
// current state to every subscriber, per spec.md §4.10.
func (n *Notifier) UpdateWorkOrder(ctx context.Context, wo *workorder.WorkOrder) error {
	if err := n.Store.UpdateWorkOrder(ctx, wo); err != nil {
		return err
	}
	if err := n.Publish(ctx, wo); err != nil {
		log.Printf("[push] publish failed for work order %s: %v", wo.ID, err)
	}
	return nil
}

// Publish fans wo out to every registered subscription, pruning any that
// report the subscriber is gone (HTTP 410).
func (n *Notifier) Publish(ctx context.Context, wo *workorder.WorkOrder) error {
	return n.broadcast(ctx, workOrderUpdateMessage{Type: "workOrderUpdate", WorkOrder: wo})
}

// Heartbeat starts a background goroutine that broadcasts a heartbeat
// message every HeartbeatInterval until Stop is called. Calling Heartbeat
// twice without an intervening Stop is a no-op.
func (n *Notifier) Heartbeat(ctx context.Context) {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	hbCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.running = true
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case now := <-ticker.C:
				if err := n.broadcast(hbCtx, heartbeatMessage{Type: "heartbeat", At: now}); err != nil {
					log.Printf("[push] heartbeat broadcast failed: %v", err)
				}
			}
		}
	}()
}

// Stop cancels the heartbeat goroutine and waits for it to exit.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	cancel := n.cancel
	n.mu.Unlock()

	cancel()
	n.wg.Wait()
}

// broadcast POSTs body as JSON to every registered subscription's endpoint,
// removing any subscription whose endpoint reports 410 Gone.
func (n *Notifier) broadcast(ctx context.Context, body any) error {
	subs, err := n.Store.ListPushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("push: list subscriptions: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("push: marshal payload: %w", err)
	}

	for _, sub := range subs {
		if err := n.deliver(ctx, sub, payload); err != nil {
			log.Printf("[push] delivery to %s failed: %v", sub.ID, err)
		}
	}
	return nil
}

func (n *Notifier) deliver(ctx context.Context, sub store.PushSubscription, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		if rmErr := n.Store.RemovePushSubscription(ctx, sub.ID); rmErr != nil {
			return fmt.Errorf("remove gone subscription %s: %w", sub.ID, rmErr)
		}
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("subscriber %s responded %d", sub.ID, resp.StatusCode)
	}
	return nil
}
