package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject root for published events.
const DefaultSubjectPrefix = "astrolabe"

// NATSPublisher publishes events on core NATS subjects of the form
// "<prefix>.<project>.<type>", for example "astrolabe.flt.layout.stable".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// DialNATS connects to url and returns a publisher.
func DialNATS(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("astrolabe"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(conn, prefix), nil
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(e Event) string {
	return Subject(p.prefix, e)
}

// Subject builds "<prefix>.<project>.<type>". Characters that are special
// in NATS subjects are replaced in the project token.
func Subject(prefix string, e Event) string {
	project := e.Project
	if project == "" {
		project = "default"
	}
	project = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, project)
	return prefix + "." + project + "." + e.Type
}

// Publish sends the event and flushes so failures surface to the caller.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(e), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", e.Type, err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

var _ Publisher = (*NATSPublisher)(nil)
