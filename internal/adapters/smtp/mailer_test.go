package smtp

import (
	"context"
	"mime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/tianwen-game/tw-account/internal/infra/config"
)

func mailerConfig() *config.Config {
	return &config.Config{
		MailFromName:             "tw-account",
		MailFromAddress:          "noreply@tianwen.example",
		MailWorkers:              2,
		MailQueueSize:            16,
		VerificationCodeLifespan: 300 * time.Second,
	}
}

func sentMessages(t *testing.T, d *stubDialer) []*mail.Msg {
	t.Helper()
	var all []*mail.Msg
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, conn := range d.conns {
		conn.mu.Lock()
		all = append(all, conn.sent...)
		conn.mu.Unlock()
	}
	return all
}

func bodyOf(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	parts := msg.GetParts()
	require.Len(t, parts, 1)
	content, err := parts[0].GetContent()
	require.NoError(t, err)
	return string(content)
}

func TestMailer_DeliversVerificationMail(t *testing.T) {
	d := newStubDialer()
	m := NewMailer(NewPool(d.dial, 2), mailerConfig(), zap.NewNop())

	m.SendVerificationCode("player@qq.com", "AB12cd")
	m.Close()

	msgs := sentMessages(t, d)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	// the non-ASCII subject is stored RFC-2047 encoded
	rawSubject := msg.GetGenHeader(mail.HeaderSubject)
	require.Len(t, rawSubject, 1)
	subject, err := new(mime.WordDecoder).DecodeHeader(rawSubject[0])
	require.NoError(t, err)
	require.Equal(t, "邮件验证码", subject)
	require.Contains(t, msg.GetAddrHeaderString(mail.HeaderTo), "<player@qq.com>")

	body := bodyOf(t, msg)
	require.Contains(t, body, "AB12cd")
	require.Contains(t, body, "300 秒内有效")
}

func TestMailer_DeliversAllQueued(t *testing.T) {
	d := newStubDialer()
	m := NewMailer(NewPool(d.dial, 2), mailerConfig(), zap.NewNop())

	codes := []string{"aaaaaa", "bbbbbb", "cccccc", "dddddd"}
	for _, c := range codes {
		m.SendVerificationCode("player@qq.com", c)
	}
	m.Close()

	msgs := sentMessages(t, d)
	require.Len(t, msgs, len(codes))

	var joined strings.Builder
	for _, msg := range msgs {
		joined.WriteString(bodyOf(t, msg))
	}
	for _, c := range codes {
		require.Contains(t, joined.String(), c)
	}
}

func TestMailer_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	conn := &blockingConn{started: started, gate: gate}

	dial := func(context.Context) (Conn, error) { return conn, nil }

	cfg := mailerConfig()
	cfg.MailWorkers = 1
	cfg.MailQueueSize = 1
	m := NewMailer(NewPool(dial, 1), cfg, zap.NewNop())

	m.SendVerificationCode("player@qq.com", "aaaaaa")
	<-started // worker is stuck mid-send

	m.SendVerificationCode("player@qq.com", "bbbbbb") // sits in the queue
	m.SendVerificationCode("player@qq.com", "cccccc") // queue full, dropped

	close(gate)
	m.Close()

	require.Len(t, conn.sent, 2)
	require.Contains(t, bodyOf(t, conn.sent[0]), "aaaaaa")
	require.Contains(t, bodyOf(t, conn.sent[1]), "bbbbbb")
}

type blockingConn struct {
	started chan struct{}
	gate    chan struct{}
	sent    []*mail.Msg
}

func (c *blockingConn) Reset() error { return nil }

func (c *blockingConn) Send(msgs ...*mail.Msg) error {
	select {
	case c.started <- struct{}{}:
	default:
	}
	<-c.gate
	c.sent = append(c.sent, msgs...)
	return nil
}

func (c *blockingConn) Close() error { return nil }
