package notification

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type captureProvider struct {
	mu   sync.Mutex
	sent []capturedMail
	done chan struct{}
}

type capturedMail struct {
	to      []string
	subject string
	body    string
}

func newCaptureProvider(expect int) *captureProvider {
	return &captureProvider{done: make(chan struct{}, expect)}
}

func (p *captureProvider) Send(_ context.Context, to []string, subject, body string) error {
	p.mu.Lock()
	p.sent = append(p.sent, capturedMail{to: to, subject: subject, body: body})
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func (p *captureProvider) wait(t *testing.T) capturedMail {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[len(p.sent)-1]
}

func TestQueue_DeliversEnqueuedMessage(t *testing.T) {
	provider := newCaptureProvider(1)
	q := NewQueue(provider, zaptest.NewLogger(t))
	q.Start()
	defer q.Stop()

	ok := q.Enqueue(Message{
		Kind: KindInvitationCreated,
		To:   "new@example.com",
		Data: map[string]string{
			"workspace_name": "Acme",
			"inviter_name":   "Ada",
			"role":           "member",
			"token":          "tok123",
		},
	})
	require.True(t, ok)

	mail := provider.wait(t)
	assert.Equal(t, []string{"new@example.com"}, mail.to)
	assert.Contains(t, mail.subject, "Acme")
	assert.Contains(t, mail.body, "tok123")
}

func TestQueue_EscapesUserContent(t *testing.T) {
	provider := newCaptureProvider(1)
	q := NewQueue(provider, zaptest.NewLogger(t))
	q.Start()
	defer q.Stop()

	require.True(t, q.Enqueue(Message{
		Kind: KindTaskAssigned,
		To:   "member@example.com",
		Data: map[string]string{
			"task_title":     "<script>alert(1)</script>",
			"workspace_name": "Acme",
		},
	}))

	mail := provider.wait(t)
	assert.NotContains(t, mail.body, "<script>")
	assert.Contains(t, mail.body, "&lt;script&gt;")
}

func TestQueue_EnqueueNeverBlocksWhenFull(t *testing.T) {
	// No worker running, so the buffer fills and stays full.
	q := NewQueue(&NoOpProvider{}, zaptest.NewLogger(t))

	accepted := 0
	for i := 0; i < cap(q.ch)+10; i++ {
		if q.Enqueue(Message{Kind: KindTaskAssigned, To: "member@example.com"}) {
			accepted++
		}
	}
	assert.Equal(t, cap(q.ch), accepted)
}

func TestQueue_StopIsIdempotent(t *testing.T) {
	q := NewQueue(&NoOpProvider{}, zaptest.NewLogger(t))
	q.Start()
	q.Stop()
	q.Stop()
}

func TestRender_UnknownKindFallsBack(t *testing.T) {
	subject, body := render(Message{Kind: "something_else"})
	assert.NotEmpty(t, subject)
	assert.True(t, strings.HasPrefix(body, "<p>"))
}
