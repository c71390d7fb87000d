// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package testutil

import "sync"

// ManualExecutor queues tasks until the test runs them. It satisfies
// chunkio.Executor.
type ManualExecutor struct {
	mu    sync.Mutex
	tasks []func()
	runs  int
}

// Execute queues task.
func (m *ManualExecutor) Execute(task func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
}

// Pending returns the number of queued tasks.
func (m *ManualExecutor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Runs returns how many tasks have run so far.
func (m *ManualExecutor) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// Step runs the oldest queued task on the calling goroutine and reports
// whether there was one.
func (m *ManualExecutor) Step() bool {
	m.mu.Lock()
	if len(m.tasks) == 0 {
		m.mu.Unlock()
		return false
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	m.runs++
	m.mu.Unlock()
	task()
	return true
}

// Drain runs tasks until none are queued or limit steps were taken, and
// returns the number of steps.
func (m *ManualExecutor) Drain(limit int) int {
	steps := 0
	for steps < limit && m.Step() {
		steps++
	}
	return steps
}
