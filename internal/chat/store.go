// Package chat holds the state shared by the two panels and coordinates a user turn across the two
// backend calls that serve it. The store owns both message lists; everything else observes them
// through snapshots and update notifications.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/MegaGrindStone/duo-chat-ui/internal/stream"
	"github.com/google/uuid"
)

// Panel identifies one of the two chat columns.
type Panel string

const (
	// PanelBasic is the column served by the plain chat endpoint.
	PanelBasic Panel = "basic"
	// PanelAdvanced is the column served by the currently selected advanced method.
	PanelAdvanced Panel = "advanced"
)

var (
	// ErrEmptyMessage is returned when a send carries no content after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTurnInFlight is returned when a send arrives while a previous turn is still running.
	ErrTurnInFlight = errors.New("a turn is already in flight")
	// ErrInvalidMethod is returned when the selected advanced method is not one of the known
	// advanced techniques.
	ErrInvalidMethod = errors.New("invalid advanced method")
)

// failureMessage is the user-visible replacement for a panel whose call failed. The precise cause
// is appended so the user has something actionable, and logged for the operator.
const failureMessage = "An error occurred while generating the response"

// Transport issues the backend exchanges for a turn. The real HTTP client and the test double both
// satisfy it; which one the store gets is a wiring decision, not a branch in here.
type Transport interface {
	Chat(ctx context.Context, method models.Method, message string) (models.ChatResponse, error)
	ChatStream(ctx context.Context, method models.Method, message string,
		onChunk func(content string),
		onComplete func(meta stream.Meta),
		onError func(message string))
}

// Notifier observes panel mutations. Every append and every pointwise update is reported with a
// snapshot of the affected message, which is how the web layer pushes panel changes over SSE.
type Notifier interface {
	PanelUpdated(panel Panel, msg models.Message)
}

// Store coordinates a single user turn across the two panels. The basic panel uses the
// request/response exchange; the advanced panel streams. Both calls for one turn run concurrently
// and update their panels independently, targeted by message ID, so neither side can block or
// corrupt the other.
type Store struct {
	transport Transport
	notifier  Notifier
	logger    *slog.Logger

	mu       sync.Mutex
	basic    []models.Message
	advanced []models.Message
	method   models.Method
	inFlight bool
}

// NewStore creates a Store. The notifier may be nil when nobody needs update pushes, which keeps
// unit tests small.
func NewStore(transport Transport, notifier Notifier, logger *slog.Logger) *Store {
	return &Store{
		transport: transport,
		notifier:  notifier,
		logger:    logger.With(slog.String("module", "chat")),
		method:    models.MethodTuning,
	}
}

// Send starts a new turn: the user message is appended to both panels, an empty loading assistant
// placeholder follows it in each, and the two backend calls are issued concurrently. A send with
// no content or while a turn is in flight is rejected without touching either panel.
func (s *Store) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	s.inFlight = true

	method := s.method
	now := time.Now()

	userBasic := models.Message{ID: uuid.New().String(), Role: models.RoleUser, Content: trimmed, Timestamp: now}
	userAdvanced := models.Message{ID: uuid.New().String(), Role: models.RoleUser, Content: trimmed, Timestamp: now}

	basicPH := models.Message{ID: uuid.New().String(), Role: models.RoleAssistant, Timestamp: now, IsLoading: true}
	advancedPH := models.Message{
		ID: uuid.New().String(), Role: models.RoleAssistant, Timestamp: now, IsLoading: true, Method: method,
	}

	s.basic = append(s.basic, userBasic, basicPH)
	s.advanced = append(s.advanced, userAdvanced, advancedPH)
	s.mu.Unlock()

	s.notify(PanelBasic, userBasic)
	s.notify(PanelBasic, basicPH)
	s.notify(PanelAdvanced, userAdvanced)
	s.notify(PanelAdvanced, advancedPH)

	go s.runTurn(ctx, trimmed, method, basicPH.ID, advancedPH.ID)

	return nil
}

// runTurn drives both backend calls and releases the in-flight flag once both settle, no matter
// how either of them ended.
func (s *Store) runTurn(ctx context.Context, text string, method models.Method, basicID, advancedID string) {
	defer s.endTurn()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runBasic(ctx, text, basicID)
	}()
	go func() {
		defer wg.Done()
		s.runAdvanced(ctx, text, method, advancedID)
	}()
	wg.Wait()
}

func (s *Store) runBasic(ctx context.Context, text, id string) {
	res, err := s.transport.Chat(ctx, models.MethodBasic, text)
	if err != nil {
		s.logger.Error("Basic exchange failed", slog.String("err", err.Error()))
		s.failMessage(PanelBasic, id, err.Error())
		return
	}

	s.update(PanelBasic, id, func(m *models.Message) {
		m.Content = res.Content
		m.TokensPerSecond = res.TokensPerSecond
		if !res.Timestamp.IsZero() {
			m.Timestamp = res.Timestamp
		}
		m.IsLoading = false
	})
}

func (s *Store) runAdvanced(ctx context.Context, text string, method models.Method, id string) {
	s.transport.ChatStream(ctx, method, text,
		func(content string) {
			s.update(PanelAdvanced, id, func(m *models.Message) {
				m.Content += content
				m.IsLoading = false
			})
		},
		func(meta stream.Meta) {
			// Completion only finalizes the rate and timestamp; the streamed content stands.
			s.update(PanelAdvanced, id, func(m *models.Message) {
				m.TokensPerSecond = meta.Rate()
				if ts, err := time.Parse(time.RFC3339, meta.Timestamp); err == nil {
					m.Timestamp = ts
				}
				m.IsLoading = false
			})
		},
		func(message string) {
			s.logger.Error("Advanced stream failed",
				slog.String("method", string(method)),
				slog.String("err", message))
			s.failMessage(PanelAdvanced, id, message)
		})
}

func (s *Store) endTurn() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Store) failMessage(panel Panel, id, detail string) {
	s.update(panel, id, func(m *models.Message) {
		m.Content = failureMessage + " (" + detail + ")"
		m.IsLoading = false
	})
}

// update applies fn to the message with the given ID and notifies with the result. Unknown IDs are
// ignored, which makes late stream callbacks after a Clear harmless.
func (s *Store) update(panel Panel, id string, fn func(*models.Message)) {
	s.mu.Lock()
	list := s.list(panel)
	var snapshot models.Message
	found := false
	for i := range list {
		if list[i].ID == id {
			fn(&list[i])
			snapshot = list[i]
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.notify(panel, snapshot)
	}
}

func (s *Store) list(panel Panel) []models.Message {
	if panel == PanelBasic {
		return s.basic
	}
	return s.advanced
}

func (s *Store) notify(panel Panel, msg models.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.PanelUpdated(panel, msg)
}

// Messages returns a copy of one panel's list.
func (s *Store) Messages(panel Panel) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.list(panel)
	out := make([]models.Message, len(list))
	copy(out, list)
	return out
}

// Method returns the currently selected advanced method.
func (s *Store) Method() models.Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// SelectMethod switches the advanced panel's technique. Only the three advanced methods are
// accepted; the basic panel is not selectable.
func (s *Store) SelectMethod(method models.Method) error {
	if !method.Valid() || method == models.MethodBasic {
		return ErrInvalidMethod
	}
	s.mu.Lock()
	s.method = method
	s.mu.Unlock()
	return nil
}

// InFlight reports whether a turn is currently running.
func (s *Store) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Clear drops both panels whole. Individual messages are never removed. Clearing while a turn
// is running returns ErrTurnInFlight; the check and the drop happen under the same lock so a
// concurrent Send cannot slip a message in between them.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrTurnInFlight
	}
	s.basic = nil
	s.advanced = nil
	return nil
}

// Snapshot captures both panels as a Session ready for the sessions API.
func (s *Store) Snapshot() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	basic := make([]models.Message, len(s.basic))
	copy(basic, s.basic)
	advanced := make([]models.Message, len(s.advanced))
	copy(advanced, s.advanced)

	return models.Session{
		Method:    s.method,
		CreatedAt: time.Now(),
		Basic:     basic,
		Advanced:  advanced,
	}
}

// Restore replaces both panels with a saved session. It refuses to clobber a turn in flight.
func (s *Store) Restore(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return ErrTurnInFlight
	}

	s.basic = append([]models.Message(nil), session.Basic...)
	s.advanced = append([]models.Message(nil), session.Advanced...)
	if session.Method != "" && session.Method != models.MethodBasic && session.Method.Valid() {
		s.method = session.Method
	}
	return nil
}
