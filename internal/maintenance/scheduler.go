/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Task is one unit of periodic work
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

// NewTask wraps fn as a Task
func NewTask(name string, fn func(ctx context.Context) error) Task {
	return &funcTask{name: name, fn: fn}
}

func (t *funcTask) Name() string { return t.name }

func (t *funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// Scheduler runs its tasks every interval until the context is canceled.
type Scheduler struct {
	interval time.Duration
	tasks    []Task
}

// NewScheduler creates a scheduler that runs tasks, in order, every interval.
func NewScheduler(interval time.Duration, tasks ...Task) *Scheduler {
	return &Scheduler{
		interval: interval,
		tasks:    tasks,
	}
}

// Start runs the tasks on every tick until ctx is canceled.
// It returns nil on graceful shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("maintenance interval must be positive, got %s", s.interval)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger := log.FromContext(ctx).WithName("maintenance")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				// Continue to next tick; failures are usually transient
				logger.Error(err, "maintenance pass failed")
			}
		}
	}
}

// RunOnce runs every task once, in order. A failing task does not prevent
// later tasks from running; all failures are joined into the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("maintenance")

	var errs []error
	for _, task := range s.tasks {
		if ctx.Err() != nil {
			return errors.Join(append(errs, ctx.Err())...)
		}

		start := time.Now()
		if err := task.Run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", task.Name(), err))
			continue
		}
		logger.V(1).Info("Maintenance task completed", "task", task.Name(), "duration", time.Since(start))
	}
	return errors.Join(errs...)
}
