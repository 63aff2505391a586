// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Poller runs periodic discovery passes. It degrades the push-notification
// model to polling: even when no webhook ever fires, every message inside
// a poll window gets picked up.
type Poller struct {
	processor *Processor
	interval  time.Duration
}

// NewPoller creates a poller that triggers the processor at the given
// interval. The processor's lookback window should exceed the interval so
// consecutive windows overlap.
func NewPoller(processor *Processor, interval time.Duration) *Poller {
	return &Poller{
		processor: processor,
		interval:  interval,
	}
}

// Run starts the polling loop. It performs an immediate initial pass, then
// ticks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("submission poller starting", "interval", p.interval)

	p.pass(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("submission poller stopping")
			return
		case <-ticker.C:
			p.pass(ctx)
		}
	}
}

func (p *Poller) pass(ctx context.Context) {
	if err := p.processor.Run(ctx); err != nil {
		// Discovery failures end the pass early; the next tick retries.
		slog.Error("discovery pass failed", "error", err)
	}
}
