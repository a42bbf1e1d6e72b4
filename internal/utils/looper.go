package utils

import (
	"sync"
)

// Job represents a task to be executed on the looper goroutine.
type Job struct {
	Task func()
}

// Looper runs posted jobs one at a time, in order, on a single goroutine. The
// queue is unbounded so Post never blocks.
type Looper struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Job
	shutdown bool
	done     chan struct{}
}

// NewLooper creates a Looper and starts its goroutine.
func NewLooper() *Looper {
	l := &Looper{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)

	go l.loop()

	return l
}

// loop processes jobs until Shutdown is called and the queue is drained.
func (l *Looper) loop() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.shutdown {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		job := l.queue[0]
		l.queue[0] = Job{}
		l.queue = l.queue[1:]
		l.mu.Unlock()

		job.Task()
	}
}

// Post queues task. It returns false once the looper has been shut down.
func (l *Looper) Post(task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shutdown {
		return false
	}
	l.queue = append(l.queue, Job{Task: task})
	l.cond.Signal()
	return true
}

// Run queues task and waits for it to finish. It returns false without running
// task once the looper has been shut down.
func (l *Looper) Run(task func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		task()
	}) {
		return false
	}
	<-finished
	return true
}

// Shutdown stops accepting jobs, runs the ones already queued and waits for the
// looper goroutine to exit. Calling it from a job deadlocks.
func (l *Looper) Shutdown() {
	l.mu.Lock()
	l.shutdown = true
	l.cond.Signal()
	l.mu.Unlock()

	<-l.done
}
