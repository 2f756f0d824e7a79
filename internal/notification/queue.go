package notification

import (
	"context"
	"fmt"
	"html"
	"sync"

	"go.uber.org/zap"
)

const (
	KindInvitationCreated = "invitation_created"
	KindTaskAssigned      = "task_assigned"
)

// Message is one outbound notification. Producers enqueue after their own
// transaction commits; delivery is best-effort.
type Message struct {
	Kind string
	To   string
	Data map[string]string
}

// Queue hands messages to a single background worker over a bounded
// channel. Enqueue never blocks: when the buffer is full the message is
// dropped and logged, so producers stay decoupled from delivery.
type Queue struct {
	provider Provider
	log      *zap.Logger

	ch   chan Message
	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
}

func NewQueue(provider Provider, log *zap.Logger) *Queue {
	return &Queue{
		provider: provider,
		log:      log,
		ch:       make(chan Message, 256),
		done:     make(chan struct{}),
	}
}

// Enqueue reports whether the message was accepted.
func (q *Queue) Enqueue(msg Message) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		q.log.Warn("notification queue full, dropping message",
			zap.String("kind", msg.Kind),
			zap.String("to", msg.To))
		return false
	}
}

func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Stop drains nothing: in-flight delivery finishes, buffered messages are
// dropped. Notifications are best-effort.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.done) })
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case msg := <-q.ch:
			q.deliver(msg)
		}
	}
}

func (q *Queue) deliver(msg Message) {
	subject, body := render(msg)
	if err := q.provider.Send(context.Background(), []string{msg.To}, subject, body); err != nil {
		q.log.Warn("notification delivery failed",
			zap.String("kind", msg.Kind),
			zap.String("to", msg.To),
			zap.Error(err))
		return
	}
	q.log.Info("notification delivered",
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To))
}

func render(msg Message) (subject, body string) {
	esc := func(key string) string { return html.EscapeString(msg.Data[key]) }
	switch msg.Kind {
	case KindInvitationCreated:
		subject = fmt.Sprintf("You're invited to join %s", msg.Data["workspace_name"])
		body = fmt.Sprintf(
			"<p>%s invited you to join the workspace <b>%s</b> as %s.</p><p>Invitation token: <code>%s</code></p>",
			esc("inviter_name"), esc("workspace_name"), esc("role"), esc("token"))
	case KindTaskAssigned:
		subject = fmt.Sprintf("You were assigned to %s", msg.Data["task_title"])
		body = fmt.Sprintf(
			"<p>You were assigned to the task <b>%s</b> in workspace <b>%s</b>.</p>",
			esc("task_title"), esc("workspace_name"))
	default:
		subject = "Notification from Taskway"
		body = "<p>You have a new notification.</p>"
	}
	return subject, body
}
