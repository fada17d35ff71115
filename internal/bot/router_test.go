package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"telebrief/internal/digest"
	"telebrief/internal/transport"
	logx "telebrief/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) SendText(_ context.Context, _ int64, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return transport.MessageRef{MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) DeleteMessage(context.Context, transport.MessageRef) error { return nil }
func (f *fakeAdapter) Start(context.Context, chan<- transport.Update) error      { return nil }
func (f *fakeAdapter) Stop(context.Context) error                                { return nil }

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeRunner struct {
	runErr     error
	runRes     digest.Result
	cleanupRes digest.CleanupResult
	runs       int
}

func (f *fakeRunner) RunDigest(context.Context, time.Duration) (digest.Result, error) {
	f.runs++
	return f.runRes, f.runErr
}

func (f *fakeRunner) CleanupPrevious(context.Context) (digest.CleanupResult, error) {
	return f.cleanupRes, nil
}

func testStatus() Status {
	return Status{
		Model:        "gpt-4o-mini",
		Channels:     2,
		ScheduleTime: "08:00",
		Timezone:     "UTC",
		Lookback:     24 * time.Hour,
	}
}

const testOwner int64 = 500

func newTestRouter(fa *fakeAdapter, fr *fakeRunner) *Router {
	return NewRouter(fa, fr, testStatus, testOwner, logx.Nop())
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		name string
		args []string
		ok   bool
	}{
		{text: "/digest", name: "digest", ok: true},
		{text: "/digest@telebrief_bot now", name: "digest", args: []string{"now"}, ok: true},
		{text: "  /STATUS  ", name: "status", ok: true},
		{text: "hello", ok: false},
		{text: "/", ok: false},
		{text: "", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := parseCommand(tt.text)
			if ok != tt.ok || name != tt.name || len(args) != len(tt.args) {
				t.Fatalf("parseCommand(%q) = %q, %v, %v; want %q, %v, %v",
					tt.text, name, args, ok, tt.name, tt.args, tt.ok)
			}
		})
	}
}

func TestDispatchIgnoresUnauthorized(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	fr := &fakeRunner{}
	r := newTestRouter(fa, fr)

	r.dispatch(context.Background(), transport.Update{Message: &transport.Message{
		ChatID: 1, FromID: testOwner + 1, Text: "/digest",
	}})
	r.wg.Wait()

	if fr.runs != 0 {
		t.Fatal("stranger triggered a digest run")
	}
	if len(fa.texts()) != 0 {
		t.Fatalf("stranger got replies: %v", fa.texts())
	}
}

func TestDispatchUnknownCommandIgnored(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	r := newTestRouter(fa, &fakeRunner{})

	r.dispatch(context.Background(), transport.Update{Message: &transport.Message{
		ChatID: 1, FromID: testOwner, Text: "/selfdestruct",
	}})
	r.wg.Wait()

	if len(fa.texts()) != 0 {
		t.Fatalf("unknown command got replies: %v", fa.texts())
	}
}

func TestHandleDigestSuccess(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	fr := &fakeRunner{runRes: digest.Result{Sent: 2}}
	r := newTestRouter(fa, fr)

	r.dispatch(context.Background(), transport.Update{Message: &transport.Message{
		ChatID: 1, FromID: testOwner, Text: "/digest",
	}})
	r.wg.Wait()

	texts := fa.texts()
	if len(texts) != 2 {
		t.Fatalf("want processing + success reply, got %v", texts)
	}
	if !strings.Contains(texts[1], "✅") {
		t.Fatalf("success reply missing: %q", texts[1])
	}
}

func TestHandleDigestFailureIsGeneric(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	fr := &fakeRunner{runErr: errors.New("api key leaked secret-123")}
	r := newTestRouter(fa, fr)

	r.dispatch(context.Background(), transport.Update{Message: &transport.Message{
		ChatID: 1, FromID: testOwner, Text: "/digest",
	}})
	r.wg.Wait()

	texts := fa.texts()
	if len(texts) != 2 {
		t.Fatalf("want processing + failure reply, got %v", texts)
	}
	// Internal detail must stay out of the chat.
	if strings.Contains(texts[1], "secret-123") {
		t.Fatalf("error detail leaked to chat: %q", texts[1])
	}
	if !strings.Contains(texts[1], "❌") {
		t.Fatalf("apology reply missing: %q", texts[1])
	}
}

func TestHandleDigestAlreadyRunning(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	fr := &fakeRunner{runErr: ErrRunInProgress}
	r := newTestRouter(fa, fr)

	r.dispatch(context.Background(), transport.Update{Message: &transport.Message{
		ChatID: 1, FromID: testOwner, Text: "/digest",
	}})
	r.wg.Wait()

	texts := fa.texts()
	if len(texts) != 2 || !strings.Contains(texts[1], "уже генерируется") {
		t.Fatalf("busy reply missing: %v", texts)
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	r := newTestRouter(fa, &fakeRunner{})

	r.dispatch(context.Background(), transport.Update{Message: &transport.Message{
		ChatID: 1, FromID: testOwner, Text: "/status",
	}})
	r.wg.Wait()

	texts := fa.texts()
	if len(texts) != 1 {
		t.Fatalf("want one status reply, got %v", texts)
	}
	if !strings.Contains(texts[0], "gpt-4o-mini") || !strings.Contains(texts[0], "/digest") {
		t.Fatalf("status reply incomplete: %q", texts[0])
	}
}

func TestHandleCleanup(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	fr := &fakeRunner{cleanupRes: digest.CleanupResult{Deleted: 4}}
	r := newTestRouter(fa, fr)

	r.dispatch(context.Background(), transport.Update{Message: &transport.Message{
		ChatID: 1, FromID: testOwner, Text: "/cleanup",
	}})
	r.wg.Wait()

	texts := fa.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "4") {
		t.Fatalf("cleanup reply wrong: %v", texts)
	}
}
