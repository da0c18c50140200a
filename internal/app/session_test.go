package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-ranking-service/internal/domain"
)

func TestTimeoutScoresUnansweredAsIncorrect(t *testing.T) {
	clock := newFakeClock()
	session := NewSession("s-1", "u1", fourQuestionQuiz(), clock.Now, nil)

	answer(t, session, 1) // correct
	answer(t, session, 0) // incorrect
	answer(t, session, 1) // correct

	for i := 0; i < 60; i++ {
		session.Tick()
	}

	c, ok := session.Completion()
	if !ok {
		t.Fatalf("expected session to complete on timeout")
	}
	if c.Reason != ReasonTimeout {
		t.Fatalf("expected timeout reason, got %s", c.Reason)
	}
	res := c.Result
	if res.CorrectCount != 2 || res.IncorrectCount != 2 || res.ScorePercent != 50 {
		t.Fatalf("expected 2 correct, 2 incorrect, 50%%, got %+v", res)
	}
	if res.TimeSpentSeconds != 60 {
		t.Fatalf("expected the full minute spent, got %d", res.TimeSpentSeconds)
	}
}

func TestTimeoutWithoutAnswersStillProducesResult(t *testing.T) {
	session := NewSession("s-1", "u1", fourQuestionQuiz(), nil, nil)
	for i := 0; i < 60; i++ {
		session.Tick()
	}
	c, ok := session.Completion()
	if !ok || c.Result.ScorePercent != 0 || c.Result.IncorrectCount != 4 {
		t.Fatalf("expected zero score result, got %+v (ok=%v)", c.Result, ok)
	}
}

func TestAdvanceRequiresSelection(t *testing.T) {
	session := NewSession("s-1", "u1", fourQuestionQuiz(), nil, nil)

	if _, err := session.Advance(); !errors.Is(err, domain.ErrNoSelection) {
		t.Fatalf("expected no selection error, got %v", err)
	}
	snap := session.Snapshot()
	if snap.QuestionIndex != 0 || snap.Answered != 0 || snap.State != StateAwaitingAnswer {
		t.Fatalf("state must be unchanged after NoSelection, got %+v", snap)
	}
	if err := session.SelectOption(5); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
}

func TestRetreatRestoresAnswerAndReanswerOverwrites(t *testing.T) {
	clock := newFakeClock()
	session := NewSession("s-1", "u1", fourQuestionQuiz(), clock.Now, nil)

	if err := session.Retreat(); err != nil {
		t.Fatalf("retreat at first question must be a no-op, got %v", err)
	}
	clock.Advance(4 * time.Second)
	answer(t, session, 0)

	if err := session.Retreat(); err != nil {
		t.Fatalf("retreat: %v", err)
	}
	snap := session.Snapshot()
	if snap.QuestionIndex != 0 || snap.Pending == nil || *snap.Pending != 0 {
		t.Fatalf("expected previous answer restored as pending, got %+v", snap)
	}

	clock.Advance(2 * time.Second)
	answer(t, session, 1)

	answers := session.Answers()
	if len(answers) != 1 {
		t.Fatalf("expected re-answer to overwrite, got %+v", answers)
	}
	if !answers[0].Correct || answers[0].OptionIndex != 1 || answers[0].TimeSpentSeconds != 2 {
		t.Fatalf("unexpected overwritten answer %+v", answers[0])
	}
	if snap := session.Snapshot(); snap.QuestionIndex != 1 || snap.Pending != nil {
		t.Fatalf("expected fresh second question, got %+v", snap)
	}
}

func TestAdvancePastLastQuestionCompletes(t *testing.T) {
	hookCalls := 0
	session := NewSession("s-1", "u1", fourQuestionQuiz(), nil, func(c Completion) (*RecordOutcome, error) {
		hookCalls++
		return &RecordOutcome{GlobalRank: 1}, nil
	})

	for i := 0; i < 3; i++ {
		answer(t, session, 1)
	}
	if err := session.SelectOption(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	c, err := session.Advance()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if c == nil || c.Reason != ReasonFinished || c.Result.ScorePercent != 100 {
		t.Fatalf("expected finished completion, got %+v", c)
	}
	if c.Outcome == nil || c.Outcome.GlobalRank != 1 {
		t.Fatalf("expected hook outcome attached, got %+v", c.Outcome)
	}

	if _, err := session.Advance(); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error, got %v", err)
	}
	again := session.SubmitNow()
	if again.Result != c.Result || hookCalls != 1 {
		t.Fatalf("expected the single result to be returned again, hook calls %d", hookCalls)
	}
	for i := 0; i < 500; i++ {
		session.Tick()
	}
	if hookCalls != 1 {
		t.Fatalf("ticks after completion must not resubmit, hook calls %d", hookCalls)
	}
}

func TestTimerExpiresSession(t *testing.T) {
	ticker := newFakeTicker()
	session := NewSession("s-1", "u1", fourQuestionQuiz(), nil, nil)
	session.StartTimer(ticker.factory, time.Second)

	for i := 0; i < 60; i++ {
		ticker.ch <- time.Time{}
	}
	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected timeout completion")
	}
	c, _ := session.Completion()
	if c.Reason != ReasonTimeout {
		t.Fatalf("expected timeout, got %s", c.Reason)
	}
	ticker.waitStopped(t)
}

func TestTimerCancelledOnSubmit(t *testing.T) {
	ticker := newFakeTicker()
	session := NewSession("s-1", "u1", fourQuestionQuiz(), nil, nil)
	session.StartTimer(ticker.factory, time.Second)

	ticker.ch <- time.Time{}
	waitRemaining(t, session, 59)
	c := session.SubmitNow()
	if c.Reason != ReasonSubmitted || c.Result.TimeSpentSeconds != 1 {
		t.Fatalf("unexpected completion %+v", c)
	}
	ticker.waitStopped(t)
}

func TestAbandonStopsTimer(t *testing.T) {
	ticker := newFakeTicker()
	session := NewSession("s-1", "u1", fourQuestionQuiz(), nil, nil)
	session.StartTimer(ticker.factory, time.Second)

	session.Abandon()
	ticker.waitStopped(t)
	if _, ok := session.Completion(); ok {
		t.Fatalf("abandoned session must not produce a result")
	}
}

func TestTickAfterAbandonDoesNotTimeOut(t *testing.T) {
	hookCalls := 0
	session := NewSession("s-1", "u1", fourQuestionQuiz(), nil, func(Completion) (*RecordOutcome, error) {
		hookCalls++
		return nil, nil
	})
	for i := 0; i < 59; i++ {
		session.Tick()
	}

	session.Abandon()
	// the final second arrives from a tick that raced with Abandon
	session.Tick()

	if _, ok := session.Completion(); ok {
		t.Fatalf("abandoned session must not time out")
	}
	if hookCalls != 0 {
		t.Fatalf("abandoned session must not be recorded, hook calls %d", hookCalls)
	}
	select {
	case <-session.Done():
		t.Fatalf("done must stay open for an abandoned session")
	default:
	}
}

func TestConcurrentTransitionsProduceOneResult(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	session := NewSession("s-1", "u1", fourQuestionQuiz(), nil, func(Completion) (*RecordOutcome, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			session.SubmitNow()
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 60; j++ {
				session.Tick()
			}
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Fatalf("expected exactly one completion, got %d", calls)
	}
}

func waitRemaining(t *testing.T, s *Session, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().RemainingSeconds != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d seconds remaining, got %d", want, s.Snapshot().RemainingSeconds)
		}
		time.Sleep(time.Millisecond)
	}
}

func answer(t *testing.T, s *Session, option int) {
	t.Helper()
	if err := s.SelectOption(option); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
}

func fourQuestionQuiz() domain.Quiz {
	quiz := domain.Quiz{
		ID:              "quiz-1",
		Title:           "Four",
		Category:        "science",
		Difficulty:      domain.DifficultyMedium,
		DurationMinutes: 1,
	}
	for i := 0; i < 4; i++ {
		quiz.Questions = append(quiz.Questions, domain.Question{
			Text: "Pick the second option",
			Options: []domain.Option{
				{Text: "wrong", Correct: false},
				{Text: "right", Correct: true},
			},
		})
	}
	return quiz
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
}

func (f *fakeTicker) factory(time.Duration) Ticker { return f }
func (f *fakeTicker) C() <-chan time.Time           { return f.ch }
func (f *fakeTicker) Stop()                         { f.once.Do(func() { close(f.stopped) }) }

func (f *fakeTicker) waitStopped(t *testing.T) {
	t.Helper()
	select {
	case <-f.stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected ticker to be stopped")
	}
}
