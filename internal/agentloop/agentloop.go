// Package agentloop implements the agent's startup sequence and main poll
// loop (C9): single-threaded cooperative dispatch of start/stop commands
// against the work-order pipeline, sweeping the sleep queue on every tick.
// Grounded on the teacher's internal/tracking/consumer.go poll-loop shape
// (long-poll receive, validate, dispatch, delete) and cmd/worker/main.go's
// signal-driven graceful shutdown, which cmd/agent reuses to stop
// Run's context.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ignite/email-campaign-agent/internal/executor"
	"github.com/ignite/email-campaign-agent/internal/sleepqueue"
	"github.com/ignite/email-campaign-agent/internal/steps"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// Locker is the subset of internal/lock.Manager the loop needs.
// internal/lock.Manager satisfies this structurally; defining it here
// (rather than importing internal/lock) lets tests substitute a
// dependency-free fake instead of standing up DynamoDB.
type Locker interface {
	Acquire(ctx context.Context, id, agentID string) (bool, error)
	Release(ctx context.Context, id string) error
	ReleaseAll(ctx context.Context, all []*workorder.WorkOrder, exceptStates ...string) (int, error)
}

// Loop owns the command-queue/sleep-queue dispatch cycle for one agent
// process.
type Loop struct {
	store   store.Store
	lock    Locker
	exec    *executor.Executor
	runtime *executor.Runtime
	sleep   *sleepqueue.Queue
	agentID string

	pollInterval time.Duration
	receiveWait  time.Duration
}

// New constructs a Loop. rt is shared across every dispatched step, the
// same way executor.Executor.Run expects (it sets WorkOrder/Progress for
// the duration of each call).
func New(st store.Store, lk Locker, exec *executor.Executor, rt *executor.Runtime, sleep *sleepqueue.Queue, agentID string, pollInterval, receiveWait time.Duration) *Loop {
	return &Loop{
		store:        st,
		lock:         lk,
		exec:         exec,
		runtime:      rt,
		sleep:        sleep,
		agentID:      agentID,
		pollInterval: pollInterval,
		receiveWait:  receiveWait,
	}
}

func (l *Loop) now() time.Time { return l.runtime.Clock() }

// Startup runs the ordered, idempotent startup sequence of spec.md §4.9:
// purge stale commands, recover abandoned leases (sleeping work orders are
// left locked, per internal/lock.ReleaseAll), then rediscover and enqueue
// every sleeping work order.
func (l *Loop) Startup(ctx context.Context) error {
	if err := l.store.PurgeQueue(ctx); err != nil {
		return fmt.Errorf("agentloop: startup: purge queue: %w", err)
	}

	all, err := l.store.ScanAllWorkOrders(ctx)
	if err != nil {
		return fmt.Errorf("agentloop: startup: scan work orders: %w", err)
	}
	if _, err := l.lock.ReleaseAll(ctx, all, workorder.StateSleeping); err != nil {
		return fmt.Errorf("agentloop: startup: release leases: %w", err)
	}

	if err := l.rehydrateSleepers(ctx); err != nil {
		return fmt.Errorf("agentloop: startup: rehydrate sleepers: %w", err)
	}
	return nil
}

// rehydrateSleepers rediscovers every state=Sleeping work order, relocks it
// to this agent, rewrites a past-due sleepUntil to now+sendInterval, and
// enqueues it, per spec.md §4.8.
func (l *Loop) rehydrateSleepers(ctx context.Context) error {
	ids, err := l.store.ScanWorkOrderIDsByState(ctx, workorder.StateSleeping)
	if err != nil {
		return err
	}

	now := l.now()
	for _, id := range ids {
		wo, err := l.store.GetWorkOrder(ctx, id)
		if err != nil {
			log.Printf("agentloop: rehydrate: load %s: %v", id, err)
			continue
		}

		wo.Locked = true
		wo.LockedBy = l.agentID

		sleepUntil := now
		if wo.SleepUntil != nil {
			sleepUntil = *wo.SleepUntil
		}
		if !sleepUntil.After(now) {
			interval := wo.SendInterval
			if interval == 0 {
				interval = l.runtime.EmailContinuousSleepSecs
			}
			sleepUntil = now.Add(time.Duration(interval) * time.Second)
		}
		wo.SleepUntil = &sleepUntil

		if err := l.store.UpdateWorkOrder(ctx, wo); err != nil {
			log.Printf("agentloop: rehydrate: persist %s: %v", id, err)
			continue
		}
		if err := l.sleep.Insert(id, sleepUntil); err != nil {
			log.Printf("agentloop: rehydrate: enqueue %s: %v", id, err)
		}
	}
	return nil
}

// Run drives the poll loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Startup(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// tick runs one poll-loop pass: sweep the sleep queue, then long-poll for
// and dispatch at most one command message, per spec.md §4.9.
func (l *Loop) tick(ctx context.Context) {
	l.sweepSleepers(ctx)

	msgs, err := l.store.ReceiveMessages(ctx, 1, int(l.receiveWait/time.Second))
	if err != nil {
		log.Printf("agentloop: receive messages: %v", err)
		return
	}
	for _, rm := range msgs {
		l.handleMessage(ctx, rm)
	}
}

// sweepSleepers wakes every sleep-queue entry whose sleepUntil has
// elapsed, releasing its lease and then issuing a synthetic Send start for
// each — unless the reloaded work order already has stopRequested set, in
// which case it is dropped without waking (the stop path already moved it
// to interrupted).
func (l *Loop) sweepSleepers(ctx context.Context) {
	for _, id := range l.sleep.Sweep(l.now()) {
		wo, err := l.store.GetWorkOrder(ctx, id)
		if err != nil {
			log.Printf("agentloop: sweep: load %s: %v", id, err)
			continue
		}
		if wo.StopRequested {
			continue
		}
		if err := l.lock.Release(ctx, id); err != nil {
			log.Printf("agentloop: sweep: release %s: %v", id, err)
			continue
		}
		l.handleStart(ctx, id, workorder.StepSend)
	}
}

// handleMessage validates and dispatches one command-queue message, per
// spec.md §4.9 point 2.
func (l *Loop) handleMessage(ctx context.Context, rm store.ReceivedMessage) {
	if rm.Malformed {
		l.deleteMessage(ctx, rm.ReceiptHandle)
		return
	}

	msg := rm.Message
	switch msg.Action {
	case "start":
		// Deleted before dispatch: a start may run long, and letting the
		// SQS visibility timeout expire mid-dispatch would otherwise
		// redeliver it.
		l.deleteMessage(ctx, rm.ReceiptHandle)
		l.handleStart(ctx, msg.WorkOrderID, msg.StepName)
	case "stop":
		if _, err := l.store.GetWorkOrder(ctx, msg.WorkOrderID); err != nil {
			l.deleteMessage(ctx, rm.ReceiptHandle)
			return
		}
		l.handleStop(ctx, msg.WorkOrderID, msg.StepName)
		l.deleteMessage(ctx, rm.ReceiptHandle)
	default:
		l.deleteMessage(ctx, rm.ReceiptHandle)
	}
}

func (l *Loop) deleteMessage(ctx context.Context, receiptHandle string) {
	if err := l.store.DeleteMessage(ctx, receiptHandle); err != nil {
		log.Printf("agentloop: delete message: %v", err)
	}
}

// handleStop sets stopRequested, then, if the named step is actively
// working or sleeping, marks it interrupted, drops it from the sleep
// queue, and releases the lease. Any other status is left untouched
// (informational only — nothing destructive to do).
func (l *Loop) handleStop(ctx context.Context, woID, stepName string) {
	wo, err := l.store.GetWorkOrder(ctx, woID)
	if err != nil {
		return
	}
	wo.StopRequested = true

	step, _, ok := wo.StepByName(stepName)
	if !ok {
		_ = l.store.UpdateWorkOrder(ctx, wo)
		return
	}

	if step.Status == workorder.StatusWorking || step.Status == workorder.StatusSleeping {
		step.Status = workorder.StatusInterrupted
		step.IsActive = false
		wo.State = ""
		wo.SleepUntil = nil
		l.sleep.Remove(woID)

		if err := l.store.UpdateWorkOrder(ctx, wo); err != nil {
			log.Printf("agentloop: stop %s/%s: persist: %v", woID, stepName, err)
			return
		}
		if err := l.lock.Release(ctx, woID); err != nil {
			log.Printf("agentloop: stop %s/%s: release lock: %v", woID, stepName, err)
		}
		return
	}

	if err := l.store.UpdateWorkOrder(ctx, wo); err != nil {
		log.Printf("agentloop: stop %s/%s: persist: %v", woID, stepName, err)
	}
}

// handleStart reloads the work order, verifies the preconditions of
// spec.md §4.9 point 2 ("For start"), acquires the lease, dispatches the
// step via the Executor, and releases the lease once the step settles
// (unless it parked itself to sleep).
func (l *Loop) handleStart(ctx context.Context, woID, stepName string) {
	wo, err := l.store.GetWorkOrder(ctx, woID)
	if err != nil {
		return
	}
	wo.StopRequested = false

	step, idx, ok := wo.StepByName(stepName)
	if !ok {
		return
	}

	if !wo.PredecessorComplete(idx) {
		step.Status = workorder.StatusError
		step.Message = "predecessor step is not complete"
		step.IsActive = false
		_ = l.store.UpdateWorkOrder(ctx, wo)
		return
	}

	switch step.Status {
	case workorder.StatusReady, workorder.StatusComplete, workorder.StatusInterrupted,
		workorder.StatusError, workorder.StatusException, workorder.StatusSleeping:
	case workorder.StatusWorking:
		return // duplicate request, silently dropped
	default:
		return
	}

	acquired, err := l.lock.Acquire(ctx, woID, l.agentID)
	if err != nil || !acquired {
		step.Status = workorder.StatusError
		step.Message = "failed to acquire lock"
		step.IsActive = false
		_ = l.store.UpdateWorkOrder(ctx, wo)
		return
	}

	wakingFromSleep := step.Status == workorder.StatusSleeping

	wo.Locked = true
	wo.LockedBy = l.agentID
	step.Status = workorder.StatusWorking
	step.IsActive = true
	if wakingFromSleep {
		step.Message = "Waking from sleep, beginning work"
	}
	if err := l.store.UpdateWorkOrder(ctx, wo); err != nil {
		log.Printf("agentloop: start %s/%s: persist working: %v", woID, stepName, err)
		_ = l.lock.Release(ctx, woID)
		return
	}

	handler, ok := handlerFor(stepName, wo)
	if !ok {
		_ = l.lock.Release(ctx, woID)
		return
	}

	runErr := l.exec.Run(ctx, wo, stepName, l.runtime, handler)

	finalStep, _, ok := wo.StepByName(stepName)
	if !ok {
		_ = l.lock.Release(ctx, woID)
		return
	}

	if finalStep.Status != workorder.StatusSleeping {
		if err := l.lock.Release(ctx, woID); err != nil {
			log.Printf("agentloop: start %s/%s: release lock: %v", woID, stepName, err)
		}
		return
	}

	var park executor.ParkRequest
	if !errors.As(runErr, &park) {
		// Shouldn't happen: classify only produces StatusSleeping from a
		// ParkRequest. Release defensively rather than leak the lease.
		_ = l.lock.Release(ctx, woID)
		return
	}

	wo.State = workorder.StateSleeping
	wo.SleepUntil = &park.SleepUntil
	if err := l.store.UpdateWorkOrder(ctx, wo); err != nil {
		log.Printf("agentloop: start %s/%s: persist sleep state: %v", woID, stepName, err)
	}

	if err := l.sleep.Insert(woID, park.SleepUntil); err != nil {
		finalStep.Status = workorder.StatusError
		finalStep.Message = "Too many work orders are already sleeping"
		finalStep.IsActive = false
		wo.State = ""
		wo.SleepUntil = nil
		_ = l.store.UpdateWorkOrder(ctx, wo)
		_ = l.lock.Release(ctx, woID)
	}
}

// handlerFor maps a step name onto its concrete Handler, choosing the
// continuous Send variant per wo.SendContinuously.
func handlerFor(stepName string, wo *workorder.WorkOrder) (executor.Handler, bool) {
	switch stepName {
	case workorder.StepCount:
		return steps.CountHandler{}, true
	case workorder.StepPrepare:
		return steps.PrepareHandler{}, true
	case workorder.StepTest:
		return steps.TestHandler{}, true
	case workorder.StepDryRun:
		return steps.NewDryRunHandler(), true
	case workorder.StepSend:
		return steps.NewSendHandler(wo.SendContinuously), true
	default:
		return nil, false
	}
}
