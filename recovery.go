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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/landedhq/landed/config"
)

// StuckEntryRecoveryProcessor sweeps entries left in PROCESSING by a
// processor that died between claim and mark, returning them to PENDING so
// the next invocation can retry them. Entries past the recovery budget stay
// put for manual inspection.
type StuckEntryRecoveryProcessor struct {
	landed              *Landed
	pollInterval        time.Duration
	stuckThreshold      time.Duration
	maxRecoveryAttempts int
	stopCh              chan struct{}
	wg                  sync.WaitGroup
	running             bool
	mu                  sync.Mutex
}

func NewStuckEntryRecoveryProcessor(l *Landed) *StuckEntryRecoveryProcessor {
	stuckThreshold := time.Hour
	cfg, err := config.Fetch()
	if err == nil && cfg.Queue.StuckThresholdMinutes > 0 {
		stuckThreshold = time.Duration(cfg.Queue.StuckThresholdMinutes) * time.Minute
	}

	return &StuckEntryRecoveryProcessor{
		landed:              l,
		pollInterval:        30 * time.Second,
		stuckThreshold:      stuckThreshold,
		maxRecoveryAttempts: 3,
		stopCh:              make(chan struct{}),
	}
}

func (p *StuckEntryRecoveryProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	logrus.Info("Stuck entry recovery processor started")
}

func (p *StuckEntryRecoveryProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Stuck entry recovery processor stopped")
}

func (p *StuckEntryRecoveryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *StuckEntryRecoveryProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Stuck entry recovery processor context cancelled")
			return
		case <-p.stopCh:
			logrus.Info("Stuck entry recovery processor stop signal received")
			return
		case <-ticker.C:
			p.sweep(ctx, p.stuckThreshold)
		}
	}
}

// sweep recovers stuck entries on every allocation queue shard.
func (p *StuckEntryRecoveryProcessor) sweep(ctx context.Context, threshold time.Duration) int {
	cfg, err := config.Fetch()
	if err != nil {
		logrus.Errorf("failed to fetch config during recovery sweep: %v", err)
		return 0
	}

	recovered := 0
	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.QueuePrefix, i)
		n, err := p.landed.datasource.RecoverStuckEntries(ctx, queueName, threshold, p.maxRecoveryAttempts)
		if err != nil {
			logrus.Errorf("failed to recover stuck entries on %s: %v", queueName, err)
			continue
		}
		if n > 0 {
			logrus.Infof("Recovered %d stuck entries on %s (threshold=%v)", n, queueName, threshold)
			if err := p.landed.scheduler.RequestInvocation(ctx, queueName, 0); err != nil {
				logrus.Errorf("failed to request invocation after recovery on %s: %v", queueName, err)
			}
		}
		recovered += n
	}
	return recovered
}

// RecoverStuckEntries triggers an immediate sweep with the provided
// threshold. Exposed for the manual trigger API endpoint.
func (l *Landed) RecoverStuckEntries(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold < 2*time.Minute {
		threshold = 2 * time.Minute
	}

	processor := NewStuckEntryRecoveryProcessor(l)
	return processor.sweep(ctx, threshold), nil
}
