// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import "sync"

// workQueue is an unbounded FIFO of jobs guarded by a mutex and
// condition variable. Nil jobs are stored like any other value; the
// worker loop interprets them as sentinels.
type workQueue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    []Job
}

func newWorkQueue() *workQueue {
	queue := &workQueue{}
	queue.nonEmpty = sync.NewCond(&queue.mu)
	return queue
}

// push appends job and wakes one waiting worker.
func (q *workQueue) push(job Job) {
	q.mu.Lock()
	q.items = append(q.items, job)
	q.mu.Unlock()
	q.nonEmpty.Signal()
}

// retrieve blocks until a job is available and removes it from the
// front of the queue.
func (q *workQueue) retrieve() Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.nonEmpty.Wait()
	}
	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return job
}

// length returns the number of queued jobs, sentinels included.
func (q *workQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
