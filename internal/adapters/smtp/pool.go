package smtp

import (
	"context"
	"errors"
	"sync"

	"github.com/wneessen/go-mail"

	"github.com/tianwen-game/tw-account/internal/infra/config"
)

// ErrPoolExhausted is returned when every connection slot is in use and the
// cap forbids dialing another.
var ErrPoolExhausted = errors.New("smtp: connection pool exhausted")

// Conn is the slice of *mail.Client the pool needs. Reset doubles as the
// liveness probe: an RSET round-trip fails fast on a dead connection.
type Conn interface {
	Reset() error
	Send(msgs ...*mail.Msg) error
	Close() error
}

// DialFunc opens one authenticated SMTP connection.
type DialFunc func(ctx context.Context) (Conn, error)

// NewDialer builds a DialFunc from the SMTP settings.
func NewDialer(cfg *config.Config) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		opts := []mail.Option{
			mail.WithPort(cfg.SMTPPort),
		}
		if cfg.SMTPUseTLS {
			opts = append(opts, mail.WithSSL())
		} else {
			opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
		}
		if cfg.SMTPUsername != "" {
			opts = append(opts,
				mail.WithSMTPAuth(mail.SMTPAuthPlain),
				mail.WithUsername(cfg.SMTPUsername),
				mail.WithPassword(cfg.SMTPPassword),
			)
		}

		client, err := mail.NewClient(cfg.SMTPHost, opts...)
		if err != nil {
			return nil, err
		}
		if err := client.DialWithContext(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Pool keeps up to maxSize live SMTP connections and hands them out one
// sender at a time. size counts every connection in existence, idle or
// checked out, and never exceeds maxSize.
type Pool struct {
	dial    DialFunc
	maxSize int

	mu     sync.Mutex
	idle   []Conn
	size   int
	closed bool
}

func NewPool(dial DialFunc, maxSize int) *Pool {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Pool{dial: dial, maxSize: maxSize}
}

// Acquire returns a healthy connection, reusing an idle one when possible.
// The lock is held across the dial so the size accounting stays exact.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.idle) > 0 {
		conn := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if err := conn.Reset(); err != nil {
			_ = conn.Close()
			p.size--
			continue
		}
		return conn, nil
	}

	if p.size >= p.maxSize {
		return nil, ErrPoolExhausted
	}

	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.size++
	return conn, nil
}

// Release returns a connection to the idle set, or closes it when the pool
// has been shut down in the meantime.
func (p *Pool) Release(conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.size > p.maxSize {
		_ = conn.Close()
		p.size--
		return
	}
	p.idle = append(p.idle, conn)
}

// Discard drops a connection the caller believes is broken.
func (p *Pool) Discard(conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = conn.Close()
	p.size--
}

// SendMessage runs one send on a pooled connection. A send error discards
// the connection instead of returning it; SMTP state after a failed
// transaction is not worth trusting.
func (p *Pool) SendMessage(ctx context.Context, msg *mail.Msg) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := conn.Send(msg); err != nil {
		p.Discard(conn)
		return err
	}
	p.Release(conn)
	return nil
}

// Close shuts every idle connection and marks the pool closed, so
// connections still checked out are closed on Release.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, conn := range p.idle {
		_ = conn.Close()
	}
	p.size -= len(p.idle)
	p.idle = nil
}
