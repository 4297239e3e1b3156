package radio

import (
	"context"
	"sync"

	"github.com/itohio/wisnode/pkg/logging"
)

// Stats counts uplink outcomes.
type Stats struct {
	Sent    uint32
	Failed  uint32
	Skipped uint32 // not joined at send time
}

// Counting wraps a Link, counting and logging every send.
type Counting struct {
	link Link
	log  *logging.Logger

	mu    sync.Mutex
	stats Stats
}

var _ Link = (*Counting)(nil)

// NewCounting wraps link.
func NewCounting(link Link, log *logging.Logger) *Counting {
	return &Counting{link: link, log: log}
}

func (c *Counting) Connected() bool { return c.link.Connected() }

// Send forwards to the wrapped link unless it is not joined.
func (c *Counting) Send(port uint8, payload []byte, confirm Confirm) error {
	if !c.link.Connected() {
		c.mu.Lock()
		c.stats.Skipped++
		c.mu.Unlock()
		c.log.Warnf("Did not join network, skip sending frame")
		return ErrNotJoined
	}

	err := c.link.Send(port, payload, confirm)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stats.Failed++
		c.log.Errorf("send fail count %d: %v", c.stats.Failed, err)
		return err
	}
	c.stats.Sent++
	c.log.Infof("send ok count %d", c.stats.Sent)
	return nil
}

// Join joins through the wrapped link if it needs joining.
func (c *Counting) Join(ctx context.Context) error {
	if j, ok := c.link.(Joiner); ok {
		return j.Join(ctx)
	}
	return nil
}

// Stats returns a copy of the counters.
func (c *Counting) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
