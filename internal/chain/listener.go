package chain

import "github.com/Yetoo1/beast-mcmc/internal/model"

// Listener observes the chain's states. Listeners are used for logging and
// tracing, never for control flow, and run synchronously on the sampling
// goroutine: a slow listener directly slows the chain.
type Listener interface {
	// BestState is called when the chain reaches a new best score, and once
	// for the initial state of a fresh chain.
	BestState(state int64, d model.Density)

	// CurrentState is called at the top of every iteration, before any work.
	CurrentState(state int64, d model.Density)

	// Finished is called by Terminate with the final chain length.
	Finished(length int64)
}

// Delegate hooks into the iteration boundaries without access to the model.
type Delegate interface {
	// IterationStart is called at the top of every iteration, after the
	// listeners' CurrentState.
	IterationStart(state int64)

	// IterationEnd is called after an iteration has completed.
	IterationEnd(state int64)

	// Finished is called by Terminate with the final chain length.
	Finished(length int64)
}

// AddListener appends a listener. Listeners are notified in registration
// order. Panics if called from inside a notification.
func (c *Chain) AddListener(l Listener) {
	c.mustNotBeNotifying("AddListener")
	c.listeners = append(c.listeners, l)
}

// RemoveListener removes the first registration of l.
// Panics if called from inside a notification.
func (c *Chain) RemoveListener(l Listener) {
	c.mustNotBeNotifying("RemoveListener")
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// AddDelegate appends a delegate. Delegates are notified in registration
// order. Panics if called from inside a notification.
func (c *Chain) AddDelegate(d Delegate) {
	c.mustNotBeNotifying("AddDelegate")
	c.delegates = append(c.delegates, d)
}

// RemoveDelegate removes the first registration of d.
// Panics if called from inside a notification.
func (c *Chain) RemoveDelegate(d Delegate) {
	c.mustNotBeNotifying("RemoveDelegate")
	for i, existing := range c.delegates {
		if existing == d {
			c.delegates = append(c.delegates[:i], c.delegates[i+1:]...)
			return
		}
	}
}

func (c *Chain) mustNotBeNotifying(method string) {
	if c.notifying {
		panic("chain: " + method + " called during a notification pass")
	}
}

func (c *Chain) fireBestState(state int64) {
	c.notifying = true
	defer func() { c.notifying = false }()

	for _, l := range c.listeners {
		l.BestState(state, c.density)
	}
}

func (c *Chain) fireCurrentState(state int64) {
	c.notifying = true
	defer func() { c.notifying = false }()

	for _, l := range c.listeners {
		l.CurrentState(state, c.density)
	}
	for _, d := range c.delegates {
		d.IterationStart(state)
	}
}

func (c *Chain) fireIterationEnd(state int64) {
	c.notifying = true
	defer func() { c.notifying = false }()

	for _, d := range c.delegates {
		d.IterationEnd(state)
	}
}

func (c *Chain) fireFinished(length int64) {
	c.notifying = true
	defer func() { c.notifying = false }()

	for _, l := range c.listeners {
		l.Finished(length)
	}
	for _, d := range c.delegates {
		d.Finished(length)
	}
}
