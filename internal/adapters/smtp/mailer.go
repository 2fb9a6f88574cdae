package smtp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/tianwen-game/tw-account/internal/infra/config"
)

const verificationSubject = "邮件验证码"

// Mailer queues verification mails and drains the queue with a fixed set of
// workers over the shared connection pool. Delivery is best effort: a failed
// send is logged and dropped, the code itself stays valid server side.
type Mailer struct {
	pool     *Pool
	fromName string
	fromAddr string
	lifespan time.Duration
	log      *zap.Logger

	queue chan *mail.Msg
	wg    sync.WaitGroup
}

func NewMailer(pool *Pool, cfg *config.Config, log *zap.Logger) *Mailer {
	workers := cfg.MailWorkers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.MailQueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	m := &Mailer{
		pool:     pool,
		fromName: cfg.MailFromName,
		fromAddr: cfg.MailFromAddress,
		lifespan: cfg.VerificationCodeLifespan,
		log:      log,
		queue:    make(chan *mail.Msg, queueSize),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// SendVerificationCode enqueues the mail without blocking the caller. When
// the queue is full the mail is dropped; the user can request another code.
func (m *Mailer) SendVerificationCode(email, code string) {
	msg, err := m.buildVerificationMsg(email, code)
	if err != nil {
		m.log.Error("build verification mail", zap.String("to", email), zap.Error(err))
		return
	}

	select {
	case m.queue <- msg:
	default:
		m.log.Warn("mail queue full, dropping verification mail", zap.String("to", email))
	}
}

// Close stops accepting mail, waits for queued sends to drain and shuts the
// pool down.
func (m *Mailer) Close() {
	close(m.queue)
	m.wg.Wait()
	m.pool.Close()
}

func (m *Mailer) worker() {
	defer m.wg.Done()
	for msg := range m.queue {
		// sends run to completion without a deadline; a slow relay is
		// preferable to a user who never receives the code
		if err := m.pool.SendMessage(context.Background(), msg); err != nil {
			m.log.Error("send verification mail", zap.Error(err))
		}
	}
}

func (m *Mailer) buildVerificationMsg(email, code string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.fromAddr); err != nil {
		return nil, err
	}
	if err := msg.To(email); err != nil {
		return nil, err
	}
	msg.Subject(verificationSubject)
	msg.SetBodyString(mail.TypeTextPlain,
		fmt.Sprintf("您的邮件验证码为：%s，请勿透露给他人，验证码 %.0f 秒内有效。", code, m.lifespan.Seconds()))
	return msg, nil
}
