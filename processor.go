/*
Copyright 2025 Landed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package landed

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/landedhq/landed/config"
	"github.com/landedhq/landed/internal/apierror"
	redlock "github.com/landedhq/landed/internal/lock"
	"github.com/landedhq/landed/model"
)

// BudgetProbe reports the remaining execution-unit budget of the current
// invocation. The processor checkpoints instead of claiming once the budget
// drops below the configured threshold.
type BudgetProbe interface {
	RemainingUnits(ctx context.Context) int64
}

// DeadlineBudget derives execution units from the context deadline: one unit
// per millisecond remaining. A context without a deadline reports an
// effectively unlimited budget.
type DeadlineBudget struct{}

func (DeadlineBudget) RemainingUnits(ctx context.Context) int64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return int64(^uint64(0) >> 1)
	}
	remaining := time.Until(deadline).Milliseconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FixedBudget counts down a fixed pool of units, consuming per claim. Used
// by tests and by hosts with a true per-invocation quota.
type FixedBudget struct {
	Units       int64
	CostPerUnit int64
}

func (b *FixedBudget) RemainingUnits(_ context.Context) int64 {
	return b.Units
}

// Spend consumes units from the pool.
func (b *FixedBudget) Spend(units int64) {
	b.Units -= units
}

// TaskBody executes one claimed entry. The returned error's code decides the
// lifecycle transition: nil completes, ErrTransient abandons,
// ErrResourceExhausted pauses, anything else dead-letters.
type TaskBody func(ctx context.Context, entry *model.QueueEntry) error

// Invoker requests a future processor invocation for a queue. Satisfied by
// *Scheduler.
type Invoker interface {
	RequestInvocation(ctx context.Context, queueName string, delay time.Duration) error
}

// Processor drains one named queue sequentially. It never runs entries in
// parallel; concurrency comes from independent invocations racing on the
// queue's atomic claim.
type Processor struct {
	queueName  string
	queue      *WorkQueue
	scheduler  Invoker
	budget     BudgetProbe
	threshold  int64
	reschedule time.Duration
	bodies     map[string]TaskBody
	locker     *redlock.Locker
}

// NewProcessor builds a processor for one queue name with the configured
// budget threshold.
func (l *Landed) NewProcessor(queueName string, budget BudgetProbe) (*Processor, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if budget == nil {
		budget = DeadlineBudget{}
	}

	locker := redlock.NewQueueLock(l.redis, queueName)

	p := &Processor{
		queueName:  queueName,
		queue:      l.queue,
		scheduler:  l.scheduler,
		budget:     budget,
		threshold:  cnf.Queue.BudgetThreshold,
		reschedule: time.Duration(cnf.Queue.RescheduleDelaySeconds) * time.Second,
		bodies:     make(map[string]TaskBody),
		locker:     locker,
	}
	p.Register(model.TaskTypeAllocation, func(ctx context.Context, entry *model.QueueEntry) error {
		return l.processAllocationEntry(ctx, entry, budget, cnf.Queue.BudgetThreshold)
	})
	return p, nil
}

// Register binds a task body to a task type.
func (p *Processor) Register(taskType string, body TaskBody) {
	p.bodies[taskType] = body
}

// Run is the processing loop:
//
//  1. probe the remaining budget; below threshold, request one follow-up
//     invocation and exit without claiming,
//  2. claim the next entry; none means drained confirmation and exit,
//  3. execute the entry's task body,
//  4. mark the entry by the failure class,
//  5. loop.
//
// A ResourceExhausted failure mid-execution pauses the entry and exits the
// loop immediately; no further entries are attempted in this invocation.
func (p *Processor) Run(ctx context.Context) error {
	if p.locker != nil {
		if err := p.locker.Lock(ctx, 5*time.Minute); err != nil {
			// Another invocation already drains this queue.
			logrus.Infof("processor for %s skipped: %v", p.queueName, err)
			return nil
		}
		defer func() {
			if err := p.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				logrus.Warnf("processor for %s: %v", p.queueName, err)
			}
		}()
	}

	for {
		if remaining := p.budget.RemainingUnits(ctx); remaining < p.threshold {
			logrus.Infof("processor for %s pausing: %d units remaining, threshold %d",
				p.queueName, remaining, p.threshold)
			return p.requestReschedule(ctx)
		}

		entry, err := p.queue.ClaimNext(ctx, p.queueName)
		if err != nil {
			return err
		}
		if entry == nil {
			// Drained, or a racing invocation claimed ahead of us.
			return nil
		}

		exhausted, err := p.execute(ctx, entry)
		if exhausted {
			// The follow-up invocation must be requested even when pausing
			// the entry failed, or the queue stalls until stuck recovery.
			rescheduleErr := p.requestReschedule(ctx)
			if err != nil {
				return err
			}
			return rescheduleErr
		}
		if err != nil {
			return err
		}
	}
}

// execute runs one entry and converts the outcome into a lifecycle
// transition. It returns exhausted=true when the body hit the budget wall
// and the loop must stop. Task failures never propagate: one bad entry must
// not halt the queue.
func (p *Processor) execute(ctx context.Context, entry *model.QueueEntry) (bool, error) {
	body, ok := p.bodies[entry.TaskType]
	if !ok {
		return false, p.queue.MarkFailed(ctx, entry, fmt.Sprintf("no task body registered for type %q", entry.TaskType))
	}

	err := body(ctx, entry)
	if err == nil {
		return false, p.queue.MarkComplete(ctx, entry, "processed")
	}

	switch apierror.CodeOf(err) {
	case apierror.ErrResourceExhausted:
		logrus.Infof("entry %s paused on %s: %v", entry.EntryID, p.queueName, err)
		return true, p.queue.MarkIncomplete(ctx, entry, err.Error())
	case apierror.ErrTransient, apierror.ErrConflict:
		logrus.Infof("entry %s pushed back for retry on %s: %v", entry.EntryID, p.queueName, err)
		return false, p.queue.MarkAbandoned(ctx, entry, err.Error())
	default:
		logrus.Errorf("entry %s failed permanently on %s: %v", entry.EntryID, p.queueName, err)
		return false, p.queue.MarkFailed(ctx, entry, err.Error())
	}
}

// requestReschedule emits exactly one follow-up invocation request for this
// run of the loop.
func (p *Processor) requestReschedule(ctx context.Context) error {
	if p.scheduler == nil {
		return nil
	}
	return p.scheduler.RequestInvocation(context.WithoutCancel(ctx), p.queueName, p.reschedule)
}
