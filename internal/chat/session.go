// Package chat keeps the per-ticker conversation with the assistant: the
// selected subject, the turn history and the single in-flight request.
package chat

import (
	"context"
	"log"
	"strings"
	"sync"

	"stocksage/internal/markup"
)

// ErrorMessage is the only text shown to the user when a request fails.
const ErrorMessage = "Sorry, there was an error processing your request."

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

type State string

const (
	StateIdle    State = "idle"
	StateReady   State = "ready"
	StatePending State = "pending"
	StateErrored State = "errored"
)

type ErrorKind string

const ErrTransportFailure ErrorKind = "transport_failure"

// Turn is immutable once appended. Rendered is set on assistant turns only.
type Turn struct {
	Role     Role           `json:"role"`
	Text     string         `json:"text"`
	Rendered markup.Content `json:"rendered,omitempty"`
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is what the assistant service receives. The JSON names follow the
// service's /api/chat contract.
type Request struct {
	Message string           `json:"message"`
	Subject string           `json:"stock"`
	History []HistoryMessage `json:"conversation_history"`
}

type Response struct {
	Message string `json:"message"`
}

// Transport delivers a request to the assistant service. Any error is
// treated as a failed turn; the session never retries.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

type TransportFunc func(ctx context.Context, req Request) (Response, error)

func (f TransportFunc) Send(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Call is an accepted submission waiting for its transport result.
type Call struct {
	Request    Request
	generation uint64
}

type Snapshot struct {
	Subject    string    `json:"subject"`
	State      State     `json:"state"`
	Pending    bool      `json:"pending"`
	LastError  ErrorKind `json:"last_error,omitempty"`
	Generation uint64    `json:"generation"`
	Turns      []Turn    `json:"turns"`
}

// Session is driven by one logical actor. The pending flag is what keeps a
// second submission out; the mutex only guards field access and is never
// held across a transport call.
type Session struct {
	transport Transport

	mu         sync.Mutex
	subject    string
	turns      []Turn
	pending    bool
	lastErr    ErrorKind
	generation uint64
}

func NewSession(transport Transport) *Session {
	return &Session{transport: transport}
}

// SelectSubject discards the conversation and starts a new one about symbol.
// A request still in flight for the old subject is ignored when it returns.
func (s *Session) SelectSubject(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = strings.TrimSpace(symbol)
	s.turns = nil
	s.pending = false
	s.lastErr = ""
	s.generation++
}

// Begin accepts a user message and returns the request to send. It returns
// false without touching the session when there is no subject, the text is
// blank, or a request is already pending.
func (s *Session) Begin(text string) (*Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subject == "" || s.pending || strings.TrimSpace(text) == "" {
		return nil, false
	}

	req := Request{
		Message: text,
		Subject: s.subject,
		History: historyOf(s.turns),
	}
	s.turns = append(s.turns, Turn{Role: RoleUser, Text: text})
	s.pending = true
	return &Call{Request: req, generation: s.generation}, true
}

// Complete records the transport outcome of call and returns the appended
// turn. It reports false when the subject changed after Begin.
func (s *Session) Complete(call *Call, resp Response, err error) (Turn, bool) {
	if call == nil {
		return Turn{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if call.generation != s.generation || !s.pending {
		return Turn{}, false
	}

	var turn Turn
	if err != nil {
		log.Printf("chat transport error: subject=%s err=%v", call.Request.Subject, err)
		turn = Turn{Role: RoleError, Text: ErrorMessage}
		s.lastErr = ErrTransportFailure
	} else {
		turn = Turn{Role: RoleAssistant, Text: resp.Message, Rendered: markup.Parse(resp.Message)}
		s.lastErr = ""
	}
	s.turns = append(s.turns, turn)
	s.pending = false
	return turn, true
}

// Submit runs Begin, the transport call and Complete. The returned turn is
// the assistant or error turn; ok is false when the message was not
// accepted or its result was discarded.
func (s *Session) Submit(ctx context.Context, text string) (Turn, bool) {
	call, ok := s.Begin(text)
	if !ok {
		return Turn{}, false
	}
	var (
		resp Response
		err  error
	)
	if s.transport == nil {
		err = errNoTransport
	} else {
		resp, err = s.transport.Send(ctx, call.Request)
	}
	return s.Complete(call, resp, err)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{
		Subject:    s.subject,
		State:      s.stateLocked(),
		Pending:    s.pending,
		LastError:  s.lastErr,
		Generation: s.generation,
		Turns:      turns,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) Subject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subject
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) stateLocked() State {
	switch {
	case s.subject == "":
		return StateIdle
	case s.pending:
		return StatePending
	case s.lastErr != "":
		return StateErrored
	default:
		return StateReady
	}
}

// historyOf maps prior turns to the transcript sent back to the service.
// Error turns are local notices and never leave the session.
func historyOf(turns []Turn) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			out = append(out, HistoryMessage{Role: "user", Content: t.Text})
		case RoleAssistant:
			out = append(out, HistoryMessage{Role: "assistant", Content: t.Text})
		}
	}
	return out
}
