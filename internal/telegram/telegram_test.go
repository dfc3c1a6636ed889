package telegram

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ledger_bot/internal/telegram/models"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*botModels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &botModels.Message{ID: len(f.sent)}, nil
}

func TestEventFromUpdate(t *testing.T) {
	update := &botModels.Update{
		ID: 1,
		Message: &botModels.Message{
			ID:   77,
			From: &botModels.User{ID: 1001},
			Chat: botModels.Chat{ID: -42},
			Text: "/accountbalance\nWallet",
			Entities: []botModels.MessageEntity{
				{Type: botModels.MessageEntityTypeBotCommand, Offset: 0, Length: 15},
			},
		},
	}

	ev, ok := EventFromUpdate(update)
	if !ok {
		t.Fatalf("expected event")
	}
	if ev.ChatID != -42 || ev.MessageID != 77 || ev.SenderID != "1001" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(ev.Entities) != 1 || ev.Entities[0].Type != models.EntityTypeBotCommand || ev.Entities[0].Length != 15 {
		t.Fatalf("unexpected entities: %+v", ev.Entities)
	}
	if ev.IdempotencyKey() != "-42:77" {
		t.Fatalf("unexpected idempotency key %q", ev.IdempotencyKey())
	}
}

func TestEventFromUpdateSkipsNonText(t *testing.T) {
	cases := []*botModels.Update{
		nil,
		{ID: 1},
		{ID: 2, Message: &botModels.Message{ID: 3, Chat: botModels.Chat{ID: 1}}},
	}
	for i, update := range cases {
		if _, ok := EventFromUpdate(update); ok {
			t.Fatalf("case %d: expected no event", i)
		}
	}
}

func TestNotifierSendsPlainText(t *testing.T) {
	sender := &fakeSender{}
	limiter := NewRateLimiter(10)
	defer limiter.Close()

	n := NewNotifier(sender, limiter)
	if err := n.Notify(context.Background(), 42, "Account balance: <5>"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	params := sender.sent[0]
	if params.ChatID != int64(42) || params.Text != "Account balance: <5>" || params.ParseMode != "" {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestNotifierReturnsSendError(t *testing.T) {
	boom := errors.New("forbidden: bot was kicked")
	n := NewNotifier(&fakeSender{err: boom}, nil)

	if err := n.Notify(context.Background(), 1, "hi"); !errors.Is(err, boom) {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	limiter := NewRateLimiter(1)
	defer limiter.Close()

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first token should be available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	limiter.Close()
	limiter.Close()
}

func TestWorkerPoolProcessesAndRecovers(t *testing.T) {
	pool := NewWorkerPool(2, 16)

	var handled atomic.Int64
	handler := func(ctx context.Context, ev models.Event) error {
		switch ev.Text {
		case "panic":
			panic("boom")
		case "fail":
			return errors.New("store down")
		}
		handled.Add(1)
		return nil
	}

	for _, text := range []string{"a", "panic", "b", "fail", "c"} {
		if !pool.Submit(Task{Ctx: context.Background(), Event: models.Event{Text: text}, Handler: handler}) {
			t.Fatalf("submit of %q rejected", text)
		}
	}
	pool.Shutdown()
	pool.Shutdown()

	stats := pool.Stats()
	if handled.Load() != 3 || stats.Processed != 3 {
		t.Fatalf("expected 3 processed, got handled=%d stats=%+v", handled.Load(), stats)
	}
	if stats.Failed != 2 {
		t.Fatalf("expected 2 failed, got %+v", stats)
	}
}

func TestWorkerPoolDropsWhenFull(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	blocking := func(ctx context.Context, ev models.Event) error {
		if ev.Text == "first" {
			close(started)
		}
		<-release
		return nil
	}

	pool.Submit(Task{Ctx: context.Background(), Event: models.Event{Text: "first"}, Handler: blocking})
	<-started
	if !pool.Submit(Task{Ctx: context.Background(), Event: models.Event{Text: "queued"}, Handler: blocking}) {
		t.Fatalf("expected queued task to be accepted")
	}
	if pool.Submit(Task{Ctx: context.Background(), Event: models.Event{Text: "dropped"}, Handler: blocking}) {
		t.Fatalf("expected task to be dropped")
	}

	close(release)
	pool.Shutdown()

	if got := pool.Stats().Dropped; got != 1 {
		t.Fatalf("expected 1 dropped, got %d", got)
	}
}

func TestMiddlewareChain(t *testing.T) {
	var deadlineSet bool
	h := Chain(func(ctx context.Context, ev models.Event) error {
		_, deadlineSet = ctx.Deadline()
		if ev.Text == "panic" {
			panic("kaboom")
		}
		return nil
	}, Recover(), Logging(), Timeout(time.Second))

	if err := h(context.Background(), models.Event{Text: "ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deadlineSet {
		t.Fatalf("expected timeout middleware to set a deadline")
	}
	if err := h(context.Background(), models.Event{Text: "panic"}); err == nil {
		t.Fatalf("expected panic to be converted into an error")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                 "0s",
		90 * time.Second:                  "1m 30s",
		26*time.Hour + 5*time.Second:      "1d 2h 5s",
		-5 * time.Second:                  "0s",
		3*time.Hour + 400*time.Millisecond: "3h",
	}
	for d, want := range cases {
		if got := formatDuration(d); got != want {
			t.Fatalf("formatDuration(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestWorkerPoolRejectsAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1, 4)
	pool.Shutdown()

	ok := pool.Submit(Task{Ctx: context.Background(), Event: models.Event{Text: "late"}, Handler: func(ctx context.Context, ev models.Event) error {
		return nil
	}})
	if ok {
		t.Fatalf("expected submit after shutdown to be rejected")
	}
}
