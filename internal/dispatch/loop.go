// Package dispatch implements the single cooperative dispatch loop the
// scheduling core runs on. HTTP handlers and timer callbacks are the only
// two sources of work; both must be serialized onto this one goroutine so
// that no mutex is needed on the core's data structures (job queues,
// interceptor state, runtime budgets).
package dispatch

// Loop is a single-worker command queue. Call Run once, from its own
// goroutine, before posting any work.
type Loop struct {
	cmds chan func()
	done chan struct{}
}

// New returns a Loop with the given command backlog capacity.
func New(backlog int) *Loop {
	return &Loop{
		cmds: make(chan func(), backlog),
		done: make(chan struct{}),
	}
}

// Run drains commands until Stop is called. It must run on its own
// goroutine; every core mutation happens here and nowhere else.
func (l *Loop) Run() {
	for {
		select {
		case fn := <-l.cmds:
			fn()
		case <-l.done:
			for {
				select {
				case fn := <-l.cmds:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Stop halts Run after any already-queued commands drain.
func (l *Loop) Stop() {
	close(l.done)
}

// Post enqueues fn to run on the loop and returns without waiting for fn to
// run; it blocks only while the backlog is full. Used by timer callbacks,
// which must not block the clock's own goroutine waiting for the loop.
func (l *Loop) Post(fn func()) {
	l.cmds <- fn
}

// Call enqueues fn and blocks until it has run on the loop. Used by
// synchronous, HTTP-originated public operations.
func (l *Loop) Call(fn func()) {
	done := make(chan struct{})
	l.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}
