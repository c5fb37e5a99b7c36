package gateway

import (
	"context"
	"sync"
)

// MailMock collects sent messages.  Recipients listed in FailFor are
// rejected with ErrUpstreamUnavailable.
type MailMock struct {
	mock    sync.Mutex
	Sent    []Message
	FailFor map[string]bool
}

func (c *MailMock) Send(ctx context.Context, msg Message) error {
	c.mock.Lock()
	defer c.mock.Unlock()
	if c.FailFor[msg.To] {
		return ErrUpstreamUnavailable
	}
	c.Sent = append(c.Sent, msg)
	return nil
}

// SentTo returns the messages delivered to one recipient.
func (c *MailMock) SentTo(to string) []Message {
	c.mock.Lock()
	defer c.mock.Unlock()
	var out []Message
	for _, m := range c.Sent {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}
