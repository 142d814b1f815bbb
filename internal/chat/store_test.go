package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/chat"
	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/MegaGrindStone/duo-chat-ui/internal/stream"
)

// fakeTransport resolves both panel calls from canned data. The optional gates let a test hold one
// side open to force a specific resolution order.
type fakeTransport struct {
	basicRes  models.ChatResponse
	basicErr  error
	basicGate chan struct{}

	chunks     []string
	meta       stream.Meta
	streamErr  string
	streamGate chan struct{}
}

func (f *fakeTransport) Chat(_ context.Context, _ models.Method, _ string) (models.ChatResponse, error) {
	if f.basicGate != nil {
		<-f.basicGate
	}
	return f.basicRes, f.basicErr
}

func (f *fakeTransport) ChatStream(_ context.Context, _ models.Method, _ string,
	onChunk func(string), onComplete func(stream.Meta), onError func(string),
) {
	if f.streamGate != nil {
		<-f.streamGate
	}
	if f.streamErr != "" {
		onError(f.streamErr)
		return
	}
	for _, c := range f.chunks {
		onChunk(c)
	}
	onComplete(f.meta)
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []chat.Panel
}

func (r *recordingNotifier) PanelUpdated(panel chat.Panel, _ models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, panel)
}

func (r *recordingNotifier) count(panel chat.Panel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.updates {
		if p == panel {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitIdle(t *testing.T, s *chat.Store) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !s.InFlight() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("turn did not settle in time")
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	s := chat.NewStore(&fakeTransport{}, nil, discardLogger())

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := s.Send(context.Background(), text); !errors.Is(err, chat.ErrEmptyMessage) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyMessage", text, err)
		}
	}

	if got := s.Messages(chat.PanelBasic); len(got) != 0 {
		t.Errorf("basic panel has %d messages after rejected sends, want 0", len(got))
	}
	if got := s.Messages(chat.PanelAdvanced); len(got) != 0 {
		t.Errorf("advanced panel has %d messages after rejected sends, want 0", len(got))
	}
}

func TestSendRejectsWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	ft := &fakeTransport{
		basicRes:  models.ChatResponse{Content: "first"},
		basicGate: gate,
		chunks:    []string{"first"},
	}
	s := chat.NewStore(ft, nil, discardLogger())

	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}
	if err := s.Send(context.Background(), "second"); !errors.Is(err, chat.ErrTurnInFlight) {
		t.Fatalf("second Send error = %v, want ErrTurnInFlight", err)
	}
	if got := len(s.Messages(chat.PanelBasic)); got != 2 {
		t.Errorf("basic panel has %d messages, want 2 (rejected send must not append)", got)
	}

	close(gate)
	waitIdle(t, s)

	ft.basicGate = nil
	if err := s.Send(context.Background(), "third"); err != nil {
		t.Fatalf("Send after settled turn failed: %v", err)
	}
	waitIdle(t, s)
}

func TestTurnUpdatesBothPanels(t *testing.T) {
	ft := &fakeTransport{
		basicRes: models.ChatResponse{Content: "plain answer", TokensPerSecond: 4.2},
		chunks:   []string{"streamed ", "answer"},
		meta: stream.Meta{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			TimeTaken:  2,
			TotalChars: 15,
		},
	}
	notifier := &recordingNotifier{}
	s := chat.NewStore(ft, notifier, discardLogger())

	if err := s.Send(context.Background(), "  hello  "); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitIdle(t, s)

	basic := s.Messages(chat.PanelBasic)
	if len(basic) != 2 {
		t.Fatalf("basic panel has %d messages, want 2", len(basic))
	}
	if basic[0].Role != models.RoleUser || basic[0].Content != "hello" {
		t.Errorf("basic user message = %+v, want trimmed %q", basic[0], "hello")
	}
	if basic[1].Content != "plain answer" || basic[1].TokensPerSecond != 4.2 || basic[1].IsLoading {
		t.Errorf("basic assistant message = %+v", basic[1])
	}

	advanced := s.Messages(chat.PanelAdvanced)
	if len(advanced) != 2 {
		t.Fatalf("advanced panel has %d messages, want 2", len(advanced))
	}
	if advanced[0].Content != basic[0].Content {
		t.Errorf("panels received different user messages: %q vs %q", advanced[0].Content, basic[0].Content)
	}
	if advanced[1].Content != "streamed answer" {
		t.Errorf("advanced content = %q, want %q", advanced[1].Content, "streamed answer")
	}
	if advanced[1].TokensPerSecond != 7.5 {
		t.Errorf("advanced rate = %v, want 7.5", advanced[1].TokensPerSecond)
	}
	if advanced[1].IsLoading {
		t.Error("advanced assistant message still marked loading after completion")
	}

	// Two appends per panel plus at least one update per assistant message.
	if n := notifier.count(chat.PanelBasic); n < 3 {
		t.Errorf("basic panel notified %d times, want at least 3", n)
	}
	if n := notifier.count(chat.PanelAdvanced); n < 3 {
		t.Errorf("advanced panel notified %d times, want at least 3", n)
	}
}

func TestBasicFailureLeavesAdvancedIntact(t *testing.T) {
	ft := &fakeTransport{
		basicErr: errors.New("backend unreachable"),
		chunks:   []string{"still ", "fine"},
		meta:     stream.Meta{TimeTaken: 1, TotalChars: 10},
	}
	s := chat.NewStore(ft, nil, discardLogger())

	if err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitIdle(t, s)

	basic := s.Messages(chat.PanelBasic)
	if !strings.Contains(basic[1].Content, "backend unreachable") {
		t.Errorf("basic failure content = %q, want cause included", basic[1].Content)
	}
	if basic[1].IsLoading {
		t.Error("failed basic message still marked loading")
	}

	advanced := s.Messages(chat.PanelAdvanced)
	if advanced[1].Content != "still fine" {
		t.Errorf("advanced content = %q, want %q", advanced[1].Content, "still fine")
	}
}

func TestStreamFailureLeavesBasicIntact(t *testing.T) {
	// The basic side is held open until the stream has already failed, so the test proves the
	// failed panel cannot drag the healthy one down regardless of ordering.
	gate := make(chan struct{})
	ft := &fakeTransport{
		basicRes:  models.ChatResponse{Content: "fine"},
		basicGate: gate,
		streamErr: "stream ended without completion signal",
	}
	s := chat.NewStore(ft, nil, discardLogger())

	if err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := s.Messages(chat.PanelAdvanced); !msgs[1].IsLoading {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(gate)
	waitIdle(t, s)

	advanced := s.Messages(chat.PanelAdvanced)
	if !strings.Contains(advanced[1].Content, "stream ended without completion signal") {
		t.Errorf("advanced failure content = %q, want cause included", advanced[1].Content)
	}

	basic := s.Messages(chat.PanelBasic)
	if basic[1].Content != "fine" {
		t.Errorf("basic content = %q, want %q", basic[1].Content, "fine")
	}
}

func TestSelectMethod(t *testing.T) {
	s := chat.NewStore(&fakeTransport{}, nil, discardLogger())

	if got := s.Method(); got != models.MethodTuning {
		t.Fatalf("default method = %v, want %v", got, models.MethodTuning)
	}
	if err := s.SelectMethod(models.MethodRAG); err != nil {
		t.Fatalf("SelectMethod(rag) failed: %v", err)
	}
	if got := s.Method(); got != models.MethodRAG {
		t.Errorf("method = %v, want %v", got, models.MethodRAG)
	}

	for _, m := range []models.Method{models.MethodBasic, models.Method("nope"), models.Method("")} {
		if err := s.SelectMethod(m); !errors.Is(err, chat.ErrInvalidMethod) {
			t.Errorf("SelectMethod(%q) error = %v, want ErrInvalidMethod", m, err)
		}
	}
	if got := s.Method(); got != models.MethodRAG {
		t.Errorf("method changed by rejected selection: %v", got)
	}
}

func TestClearDropsBothPanels(t *testing.T) {
	ft := &fakeTransport{
		basicRes: models.ChatResponse{Content: "a"},
		chunks:   []string{"b"},
	}
	s := chat.NewStore(ft, nil, discardLogger())

	if err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitIdle(t, s)

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := len(s.Messages(chat.PanelBasic)); got != 0 {
		t.Errorf("basic panel has %d messages after Clear", got)
	}
	if got := len(s.Messages(chat.PanelAdvanced)); got != 0 {
		t.Errorf("advanced panel has %d messages after Clear", got)
	}
}

func TestClearRejectedWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	ft := &fakeTransport{
		basicRes:  models.ChatResponse{Content: "late"},
		basicGate: gate,
		chunks:    []string{"late"},
	}
	s := chat.NewStore(ft, nil, discardLogger())

	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := s.Clear(); !errors.Is(err, chat.ErrTurnInFlight) {
		t.Errorf("Clear during turn error = %v, want ErrTurnInFlight", err)
	}
	if got := len(s.Messages(chat.PanelBasic)); got != 2 {
		t.Errorf("basic panel has %d messages after rejected Clear, want 2", got)
	}

	close(gate)
	waitIdle(t, s)

	if err := s.Clear(); err != nil {
		t.Errorf("Clear after turn settled failed: %v", err)
	}
}

func TestSnapshotAndRestore(t *testing.T) {
	ft := &fakeTransport{
		basicRes: models.ChatResponse{Content: "saved"},
		chunks:   []string{"also saved"},
	}
	s := chat.NewStore(ft, nil, discardLogger())

	if err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitIdle(t, s)

	snap := s.Snapshot()
	if len(snap.Basic) != 2 || len(snap.Advanced) != 2 {
		t.Fatalf("snapshot panels = %d/%d messages, want 2/2", len(snap.Basic), len(snap.Advanced))
	}

	restored := chat.NewStore(&fakeTransport{}, nil, discardLogger())
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := restored.Messages(chat.PanelBasic); got[1].Content != "saved" {
		t.Errorf("restored basic content = %q, want %q", got[1].Content, "saved")
	}
	if got := restored.Messages(chat.PanelAdvanced); got[1].Content != "also saved" {
		t.Errorf("restored advanced content = %q, want %q", got[1].Content, "also saved")
	}
}
