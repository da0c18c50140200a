package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-ranking-service/internal/domain"
	"quiz-ranking-service/internal/scoring"
)

// SessionState is the state of the session state machine.
type SessionState string

const (
	StateAwaitingAnswer SessionState = "awaiting_answer"
	StateCompleted      SessionState = "completed"
)

// CompletionReason records what ended a session.
type CompletionReason string

const (
	ReasonFinished  CompletionReason = "finished"
	ReasonSubmitted CompletionReason = "submitted"
	ReasonTimeout   CompletionReason = "timeout"
)

// Ticker abstracts time.Ticker so the countdown can be driven by tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates the countdown ticker of a session.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Completion is emitted once when a session reaches StateCompleted.
type Completion struct {
	SessionID   string            `json:"sessionId"`
	UserID      string            `json:"userId"`
	QuizID      string            `json:"quizId"`
	Category    string            `json:"category"`
	Difficulty  domain.Difficulty `json:"difficulty"`
	Reason      CompletionReason  `json:"reason"`
	Answers     []domain.Answer   `json:"answers"`
	Result      domain.Result     `json:"result"`
	CompletedAt time.Time         `json:"completedAt"`
	Outcome     *RecordOutcome    `json:"outcome,omitempty"`
	Err         string            `json:"error,omitempty"`
}

// CompletionHook runs once per session after the result is built and before Done is closed.
// It may return an outcome to attach to the completion.
type CompletionHook func(c Completion) (*RecordOutcome, error)

// Snapshot is a read-only view of a session for clients.
type Snapshot struct {
	SessionID        string       `json:"sessionId"`
	QuizID           string       `json:"quizId"`
	State            SessionState `json:"state"`
	QuestionIndex    int          `json:"questionIndex"`
	TotalQuestions   int          `json:"totalQuestions"`
	Question         QuestionView `json:"question"`
	Pending          *int         `json:"pendingOption,omitempty"`
	RemainingSeconds int          `json:"remainingSeconds"`
	Answered         int          `json:"answered"`
}

// QuestionView hides option correctness from players.
type QuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Session is the timed state machine of one user playing one quiz.
type Session struct {
	id     string
	userID string
	quiz   domain.Quiz
	now    func() time.Time
	hook   CompletionHook

	mu            sync.Mutex
	state         SessionState
	index         int
	pending       *int
	answers       map[int]domain.Answer
	remaining     int
	questionStart time.Time
	completion    *Completion
	abandoned     bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession builds a session in AwaitingAnswer(0). The quiz must already be validated.
func NewSession(id, userID string, quiz domain.Quiz, now func() time.Time, hook CompletionHook) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:            id,
		userID:        userID,
		quiz:          quiz,
		now:           now,
		hook:          hook,
		state:         StateAwaitingAnswer,
		answers:       make(map[int]domain.Answer),
		remaining:     quiz.DurationSeconds(),
		questionStart: now(),
		cancel:        func() {},
		done:          make(chan struct{}),
	}
}

// ID is the session handle.
func (s *Session) ID() string { return s.id }

// UserID is the owner of the session.
func (s *Session) UserID() string { return s.userID }

// QuizID is the quiz being played.
func (s *Session) QuizID() string { return s.quiz.ID }

// Done is closed once the session has completed and its hook has run.
func (s *Session) Done() <-chan struct{} { return s.done }

// StartTimer runs the countdown until it expires or the session completes.
func (s *Session) StartTimer(newTicker TickerFactory, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.state == StateCompleted || s.abandoned {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	ticker := newTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				// a tick racing with cancellation must not decrement a finished session
				if ctx.Err() != nil {
					return
				}
				s.Tick()
			}
		}
	}()
}

// Tick decrements the countdown by one second and submits the session when it reaches zero.
func (s *Session) Tick() {
	s.mu.Lock()
	// a tick already past the cancellation check must not time out an abandoned session
	if s.state == StateCompleted || s.abandoned {
		s.mu.Unlock()
		return
	}
	s.remaining--
	if s.remaining > 0 {
		s.mu.Unlock()
		return
	}
	s.remaining = 0
	c := s.completeLocked(ReasonTimeout)
	s.mu.Unlock()
	s.finish(c)
}

// SelectOption records a pending choice for the current question.
func (s *Session) SelectOption(option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCompleted {
		return domain.ErrSessionCompleted
	}
	if option < 0 || option >= len(s.quiz.Questions[s.index].Options) {
		return domain.ErrOptionNotFound
	}
	s.pending = &option
	return nil
}

// Advance commits the pending choice and moves to the next question, completing the
// session after the last one. The returned completion is nil unless the session finished.
func (s *Session) Advance() (*Completion, error) {
	s.mu.Lock()
	if s.state == StateCompleted {
		s.mu.Unlock()
		return nil, domain.ErrSessionCompleted
	}
	if s.pending == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoSelection
	}

	now := s.now()
	option := *s.pending
	s.answers[s.index] = domain.Answer{
		QuestionIndex:    s.index,
		OptionIndex:      option,
		Correct:          s.quiz.Questions[s.index].Options[option].Correct,
		TimeSpentSeconds: int(now.Sub(s.questionStart) / time.Second),
	}

	if s.index == len(s.quiz.Questions)-1 {
		c := s.completeLocked(ReasonFinished)
		s.mu.Unlock()
		s.finish(c)
		return s.waitCompletion(), nil
	}

	s.index++
	s.enterQuestionLocked(now)
	s.mu.Unlock()
	return nil, nil
}

// Retreat moves back one question and restores its recorded answer as the pending choice.
func (s *Session) Retreat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCompleted {
		return domain.ErrSessionCompleted
	}
	if s.index == 0 {
		return nil
	}
	s.index--
	s.enterQuestionLocked(s.now())
	return nil
}

// SubmitNow completes the session with the answers recorded so far. Calling it on a
// completed session returns the existing completion.
func (s *Session) SubmitNow() Completion {
	s.mu.Lock()
	if s.state == StateCompleted {
		s.mu.Unlock()
		return *s.waitCompletion()
	}
	c := s.completeLocked(ReasonSubmitted)
	s.mu.Unlock()
	s.finish(c)
	return *s.waitCompletion()
}

// Abandon stops the countdown without producing a result. Later ticks are ignored.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = true
	s.cancel()
}

// Completion returns the completion once the session has finished.
func (s *Session) Completion() (Completion, bool) {
	select {
	case <-s.done:
	default:
		return Completion{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.completion, true
}

// Snapshot returns the current client-facing view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.quiz.Questions[s.index]
	view := QuestionView{Text: q.Text, Options: make([]string, len(q.Options))}
	for i, opt := range q.Options {
		view.Options[i] = opt.Text
	}
	var pending *int
	if s.pending != nil {
		p := *s.pending
		pending = &p
	}
	return Snapshot{
		SessionID:        s.id,
		QuizID:           s.quiz.ID,
		State:            s.state,
		QuestionIndex:    s.index,
		TotalQuestions:   len(s.quiz.Questions),
		Question:         view,
		Pending:          pending,
		RemainingSeconds: s.remaining,
		Answered:         len(s.answers),
	}
}

// Answers returns committed answers ordered by question index.
func (s *Session) Answers() []domain.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answersLocked()
}

func (s *Session) answersLocked() []domain.Answer {
	out := make([]domain.Answer, 0, len(s.answers))
	for _, a := range s.answers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionIndex < out[j].QuestionIndex })
	return out
}

func (s *Session) enterQuestionLocked(now time.Time) {
	s.questionStart = now
	s.pending = nil
	if a, ok := s.answers[s.index]; ok {
		option := a.OptionIndex
		s.pending = &option
	}
}

// completeLocked moves to StateCompleted and cancels the countdown.
func (s *Session) completeLocked(reason CompletionReason) *Completion {
	s.state = StateCompleted
	s.cancel()

	answers := s.answersLocked()
	spent := s.quiz.DurationSeconds() - s.remaining
	// validated quizzes always have questions, so Calculate cannot fail here
	result, _ := scoring.Calculate(s.quiz, answers, spent)
	return &Completion{
		SessionID:   s.id,
		UserID:      s.userID,
		QuizID:      s.quiz.ID,
		Reason:      reason,
		Result:      result,
		CompletedAt: s.now(),
		Answers:     answers,
		Difficulty:  s.quiz.Difficulty,
		Category:    s.quiz.Category,
	}
}

// finish runs the hook outside the lock and publishes the completion.
func (s *Session) finish(c *Completion) {
	if s.hook != nil {
		outcome, err := s.hook(*c)
		c.Outcome = outcome
		if err != nil {
			c.Err = err.Error()
		}
	}
	s.mu.Lock()
	s.completion = c
	s.mu.Unlock()
	close(s.done)
}

func (s *Session) waitCompletion() *Completion {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completion
}
