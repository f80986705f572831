package limiter

import (
	"context"
	"sync/atomic"
)

// ConcurrencyLimiter object
type ConcurrencyLimiter struct {
	name       string
	tickets    chan int
	limit      int
	inProgress int32
}

// NewConcurrencyLimiter allocates a new ConcurrencyLimiter. This is useful
// for limiting the amount of functions running at once and is used to
// bound the number of stickers being fetched and converted at once.
func NewConcurrencyLimiter(name string, limit int) *ConcurrencyLimiter {
	if limit < 1 {
		limit = 1
	}

	c := &ConcurrencyLimiter{
		name:    name,
		limit:   limit,
		tickets: make(chan int, limit),
	}

	for i := 0; i < c.limit; i++ {
		c.tickets <- i
	}

	return c
}

// Wait waits for a free ticket in the queue. Functions that call wait
// must defer FreeTicket with the ticket id. Returns the context error
// if the context is done before a ticket is free.
func (c *ConcurrencyLimiter) Wait(ctx context.Context) (ticket int, err error) {
	select {
	case ticket = <-c.tickets:
	case <-ctx.Done():
		return -1, ctx.Err()
	}

	atomic.AddInt32(&c.inProgress, 1)

	return ticket, nil
}

// FreeTicket adds the ticket back into the queue.
func (c *ConcurrencyLimiter) FreeTicket(ticket int) {
	atomic.AddInt32(&c.inProgress, -1)
	c.tickets <- ticket
}

// Go runs fn on its own goroutine once a ticket is free. The ticket is
// released when fn returns.
func (c *ConcurrencyLimiter) Go(ctx context.Context, fn func(ticket int)) error {
	ticket, err := c.Wait(ctx)
	if err != nil {
		return err
	}

	go func() {
		defer c.FreeTicket(ticket)
		fn(ticket)
	}()

	return nil
}

// InProgress returns how many tickets are being used
func (c *ConcurrencyLimiter) InProgress() int32 {
	return atomic.LoadInt32(&c.inProgress)
}

// Limit returns the maximum number of tickets.
func (c *ConcurrencyLimiter) Limit() int {
	return c.limit
}

// Name returns the name the limiter was created with.
func (c *ConcurrencyLimiter) Name() string {
	return c.name
}
