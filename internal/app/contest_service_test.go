package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"contest-service/internal/infra/memory"
)

var contestStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	clock     *fakeClock
	store     *memory.Store
	catalog   *app.CatalogService
	contests  *app.ContestService
	sweeper   *app.StatusSweeper
	admin     domain.User
	contest   domain.Contest
	questions []domain.Question
}

// newFixture builds a contest starting at contestStart, lasting 2h with a
// 30 minute exam and n linked questions whose first answer is correct.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{now: contestStart.Add(-time.Hour)}
	store := memory.NewStore()
	papers := memory.NewPaperRepository(store, time.Minute)
	opts := []app.Option{app.WithClock(clock.Now)}

	f := &fixture{
		clock:    clock,
		store:    store,
		catalog:  app.NewCatalogService(store, papers, opts...),
		contests: app.NewContestService(store, papers, memory.NewHubStore(), opts...),
		sweeper:  app.NewStatusSweeper(store, opts...),
	}
	f.admin = f.user(t, "admin")

	contest, err := f.catalog.CreateContest(ctx, f.admin.ID, app.ContestInput{
		Name:            "Spring cup",
		StartTime:       contestStart,
		EndTime:         contestStart.Add(2 * time.Hour),
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	f.contest = contest

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		q, err := f.catalog.CreateQuestion(ctx, app.QuestionInput{
			Content: fmt.Sprintf("question %d", i),
			Answers: []app.AnswerInput{
				{Content: "right", Correct: true},
				{Content: "wrong"},
				{Content: "also wrong"},
			},
		})
		if err != nil {
			t.Fatalf("create question: %v", err)
		}
		f.questions = append(f.questions, q)
		ids = append(ids, q.ID)
	}
	if n > 0 {
		if _, err := f.catalog.AddQuestions(ctx, contest.ID, ids); err != nil {
			t.Fatalf("link questions: %v", err)
		}
	}
	return f
}

func (f *fixture) user(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := f.catalog.CreateUser(context.Background(), app.UserInput{Username: name, FullName: name + " full"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) register(t *testing.T, u domain.User) {
	t.Helper()
	if _, err := f.contests.Register(context.Background(), f.contest.ID, u.ID); err != nil {
		t.Fatalf("register %s: %v", u.Username, err)
	}
}

func (f *fixture) enter(t *testing.T, u domain.User) domain.Exam {
	t.Helper()
	exam, err := f.contests.Enter(context.Background(), f.contest.ID, u.ID)
	if err != nil {
		t.Fatalf("enter %s: %v", u.Username, err)
	}
	return exam
}

func (f *fixture) answer(t *testing.T, u domain.User, q domain.Question, correct bool) {
	t.Helper()
	answerID := q.Answers[1].ID
	if correct {
		answerID = q.Answers[0].ID
	}
	if _, err := f.contests.Answer(context.Background(), f.contest.ID, q.ID, answerID, u.ID); err != nil {
		t.Fatalf("answer: %v", err)
	}
}

func TestLifecycleOneCorrectAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	alice := f.user(t, "alice")

	f.register(t, alice)
	f.clock.Set(contestStart.Add(time.Minute))
	exam := f.enter(t, alice)
	if len(exam.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(exam.Questions))
	}
	if want := contestStart.Add(time.Minute + 32*time.Minute); !exam.Deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, exam.Deadline)
	}
	f.answer(t, alice, f.questions[0], true)

	res, err := f.contests.Submit(ctx, f.contest.ID, alice.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 1 || res.Total != 2 {
		t.Fatalf("expected 1/2, got %+v", res)
	}
	stored, err := f.contests.Result(ctx, f.contest.ID, alice.ID)
	if err != nil || stored.Score != 1 {
		t.Fatalf("expected stored result 1, got %+v err=%v", stored, err)
	}
}

func TestRegisterRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")

	if _, err := f.contests.Register(ctx, "missing", alice.ID); !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("expected contest not found, got %v", err)
	}
	f.register(t, alice)
	if _, err := f.contests.Register(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("expected already registered, got %v", err)
	}
	if !errors.Is(domain.ErrAlreadyRegistered, domain.ErrConflict) {
		t.Fatalf("expected conflict kind")
	}

	bob := f.user(t, "bob")
	f.clock.Set(contestStart.Add(-10 * time.Minute))
	if _, err := f.contests.Register(ctx, f.contest.ID, bob.ID); !errors.Is(err, domain.ErrRegistrationClosed) {
		t.Fatalf("expected registration closed, got %v", err)
	}
}

func TestConcurrentRegistrationKeepsOneParticipation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.contests.Register(ctx, f.contest.ID, alice.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrAlreadyRegistered) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one registration, got %d", successes)
	}
	regs, err := f.contests.Registrations(ctx, f.contest.ID)
	if err != nil || len(regs) != 1 {
		t.Fatalf("expected one registration row, got %d err=%v", len(regs), err)
	}
	if regs[0].Username != "alice" {
		t.Fatalf("expected joined user data, got %+v", regs[0])
	}
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")

	if err := f.contests.Unregister(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}
	f.register(t, alice)
	if err := f.contests.Unregister(ctx, f.contest.ID, alice.ID); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	// Register again after unregistering: still one row at most.
	f.register(t, alice)
	f.clock.Set(contestStart.Add(-5 * time.Minute))
	if err := f.contests.Unregister(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrRegistrationClosed) {
		t.Fatalf("expected registration closed, got %v", err)
	}
}

func TestEnterWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	f.register(t, alice)
	f.register(t, bob)

	f.clock.Set(contestStart.Add(-time.Second))
	if _, err := f.contests.Enter(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrExamClosed) {
		t.Fatalf("expected exam closed before start, got %v", err)
	}

	f.clock.Set(contestStart.Add(31 * time.Minute))
	if _, err := f.contests.Enter(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrExamClosed) {
		t.Fatalf("expected exam closed after duration, got %v", err)
	}

	f.clock.Set(contestStart.Add(30 * time.Minute))
	f.enter(t, bob)
	if _, err := f.contests.Enter(ctx, f.contest.ID, bob.ID); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
	part, err := f.store.GetParticipation(ctx, bob.ID, f.contest.ID)
	if err != nil || part.StartedAt == nil || !part.StartedAt.Equal(contestStart.Add(30*time.Minute)) {
		t.Fatalf("expected a single start stamp, got %+v err=%v", part, err)
	}

	carol := f.user(t, "carol")
	if _, err := f.contests.Enter(ctx, f.contest.ID, carol.ID); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}
}

func TestConcurrentEnterStampsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")
	f.register(t, alice)
	f.clock.Set(contestStart.Add(time.Minute))

	var wg sync.WaitGroup
	var mu sync.Mutex
	entered := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.contests.Enter(ctx, f.contest.ID, alice.ID); err == nil {
				mu.Lock()
				entered++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrAlreadyStarted) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if entered != 1 {
		t.Fatalf("expected one successful entry, got %d", entered)
	}
}

func TestEnterHidesCorrectnessAndKeepsOrder(t *testing.T) {
	f := newFixture(t, 3)
	alice := f.user(t, "alice")
	f.register(t, alice)
	f.clock.Set(contestStart.Add(time.Minute))

	first := f.enter(t, alice)
	f.answer(t, alice, f.questions[1], false)
	resumed, err := f.contests.Resume(context.Background(), f.contest.ID, alice.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	for i := range first.Questions {
		a, b := first.Questions[i], resumed.Questions[i]
		if a.ID != b.ID {
			t.Fatalf("question order changed: %s vs %s", a.ID, b.ID)
		}
		for j := range a.Answers {
			if a.Answers[j].ID != b.Answers[j].ID {
				t.Fatalf("answer order changed for %s", a.ID)
			}
		}
	}
	if resumed.Questions[1].SelectedAnswerID != f.questions[1].Answers[1].ID {
		t.Fatalf("expected prior choice attached, got %+v", resumed.Questions[1])
	}
	if !resumed.StartedAt.Equal(first.StartedAt) || !resumed.Deadline.Equal(first.Deadline) {
		t.Fatalf("expected resume to keep timing, got %+v", resumed)
	}
}

func TestAnswerRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	alice := f.user(t, "alice")
	f.register(t, alice)
	q := f.questions[0]

	other, err := f.catalog.CreateQuestion(ctx, app.QuestionInput{Content: "unlinked", Answers: []app.AnswerInput{{Content: "x", Correct: true}}})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	f.clock.Set(contestStart.Add(time.Minute))
	if _, err := f.contests.Answer(ctx, f.contest.ID, q.ID, q.Answers[0].ID, alice.ID); !errors.Is(err, domain.ErrNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
	f.enter(t, alice)

	if _, err := f.contests.Answer(ctx, "missing", q.ID, q.Answers[0].ID, alice.ID); !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("expected contest not found, got %v", err)
	}
	if _, err := f.contests.Answer(ctx, f.contest.ID, other.ID, other.Answers[0].ID, alice.ID); !errors.Is(err, domain.ErrQuestionNotInContest) {
		t.Fatalf("expected question not in contest, got %v", err)
	}
	if _, err := f.contests.Answer(ctx, f.contest.ID, q.ID, f.questions[1].Answers[0].ID, alice.ID); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("expected answer not found, got %v", err)
	}

	// Last write wins.
	f.answer(t, alice, q, false)
	f.answer(t, alice, q, true)
	choices, err := f.store.ListChoices(ctx, alice.ID, f.contest.ID)
	if err != nil || len(choices) != 1 || choices[0].AnswerID != q.Answers[0].ID {
		t.Fatalf("expected one overwritten choice, got %+v err=%v", choices, err)
	}

	if _, err := f.contests.Submit(ctx, f.contest.ID, alice.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.contests.Answer(ctx, f.contest.ID, q.ID, q.Answers[1].ID, alice.ID); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}

	f.clock.Set(contestStart.Add(2*time.Hour + time.Second))
	if _, err := f.contests.Answer(ctx, f.contest.ID, q.ID, q.Answers[0].ID, alice.ID); !errors.Is(err, domain.ErrAnswerClosed) {
		t.Fatalf("expected answer closed, got %v", err)
	}
}

func TestSubmitRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	f.register(t, alice)
	f.register(t, bob)

	f.clock.Set(contestStart.Add(time.Minute))
	if _, err := f.contests.Submit(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
	if _, err := f.contests.Result(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrNotSubmitted) {
		t.Fatalf("expected not submitted, got %v", err)
	}

	f.enter(t, alice)
	f.enter(t, bob)
	for i, q := range f.questions {
		f.answer(t, alice, q, i < 3)
	}
	// Bob leaves two questions unanswered and gets one right.
	f.answer(t, bob, f.questions[0], true)
	f.answer(t, bob, f.questions[1], false)

	res, err := f.contests.Submit(ctx, f.contest.ID, alice.ID)
	if err != nil || res.Score != 3 || res.Total != 5 {
		t.Fatalf("expected 3/5, got %+v err=%v", res, err)
	}
	if _, err := f.contests.Submit(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}

	f.clock.Set(contestStart.Add(time.Minute + 32*time.Minute + time.Second))
	if _, err := f.contests.Submit(ctx, f.contest.ID, bob.ID); !errors.Is(err, domain.ErrDeadlinePassed) {
		t.Fatalf("expected deadline passed, got %v", err)
	}
}

func TestConcurrentSubmitScoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")
	f.register(t, alice)
	f.clock.Set(contestStart.Add(time.Minute))
	f.enter(t, alice)
	f.answer(t, alice, f.questions[0], true)

	var wg sync.WaitGroup
	var mu sync.Mutex
	submitted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.contests.Submit(ctx, f.contest.ID, alice.ID); err == nil {
				mu.Lock()
				submitted++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrAlreadySubmitted) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if submitted != 1 {
		t.Fatalf("expected one successful submit, got %d", submitted)
	}
}

func TestLeaderboardRanks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	scores := map[string]int{"alice": 5, "bob": 3, "carol": 5}
	users := map[string]domain.User{}
	for _, name := range []string{"alice", "bob", "carol"} {
		users[name] = f.user(t, name)
		f.register(t, users[name])
	}

	f.clock.Set(contestStart.Add(time.Minute))
	for i, name := range []string{"alice", "bob", "carol"} {
		u := users[name]
		f.enter(t, u)
		for j, q := range f.questions {
			f.answer(t, u, q, j < scores[name])
		}
		f.clock.Set(contestStart.Add(time.Duration(2+i) * time.Minute))
		if _, err := f.contests.Submit(ctx, f.contest.ID, u.ID); err != nil {
			t.Fatalf("submit %s: %v", name, err)
		}
	}

	lb, err := f.contests.Leaderboard(ctx, f.contest.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []struct {
		name  string
		score int
	}{{"alice", 5}, {"carol", 5}, {"bob", 3}}
	if len(lb.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(lb.Entries))
	}
	for i, w := range want {
		e := lb.Entries[i]
		if e.Rank != i+1 || e.Username != w.name || e.Score != w.score {
			t.Fatalf("position %d: expected %s/%d rank %d, got %+v", i, w.name, w.score, i+1, e)
		}
	}

	if _, err := f.contests.Leaderboard(ctx, "missing"); !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("expected contest not found, got %v", err)
	}
}

func TestSubscribeReceivesLeaderboardOnSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")
	f.register(t, alice)

	ch, cancel, err := f.contests.Subscribe(ctx, f.contest.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial board, got %+v", initial.Entries)
	}

	f.clock.Set(contestStart.Add(time.Minute))
	f.enter(t, alice)
	f.answer(t, alice, f.questions[0], true)
	if _, err := f.contests.Submit(ctx, f.contest.ID, alice.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case update := <-ch:
		if len(update.Entries) != 1 || update.Entries[0].Score != 1 {
			t.Fatalf("expected alice with 1 point, got %+v", update.Entries)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a leaderboard update")
	}
}

// cancelAroundSubscribe releases another stream right before and right after
// each Subscribe reaches the registry.
type cancelAroundSubscribe struct {
	app.HubRepository
	pending func()
}

func (h *cancelAroundSubscribe) Subscribe(contestID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	if h.pending != nil {
		h.pending()
	}
	ch, cancel := h.HubRepository.Subscribe(contestID, initial)
	if h.pending != nil {
		h.pending()
	}
	return ch, cancel
}

func TestSubscriberSurvivesConcurrentLastCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")
	f.register(t, alice)

	registry := memory.NewHubStore()
	hubs := &cancelAroundSubscribe{HubRepository: registry}
	contests := app.NewContestService(f.store, memory.NewPaperRepository(f.store, time.Minute), hubs,
		app.WithClock(f.clock.Now))

	_, cancelA, err := contests.Subscribe(ctx, f.contest.ID)
	if err != nil {
		t.Fatalf("subscribe A: %v", err)
	}
	hubs.pending = cancelA
	chB, cancelB, err := contests.Subscribe(ctx, f.contest.ID)
	if err != nil {
		t.Fatalf("subscribe B: %v", err)
	}
	defer cancelB()
	<-chB

	f.clock.Set(contestStart.Add(time.Minute))
	if _, err := contests.Enter(ctx, f.contest.ID, alice.ID); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if _, err := contests.Answer(ctx, f.contest.ID, f.questions[0].ID, f.questions[0].Answers[0].ID, alice.ID); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := contests.Submit(ctx, f.contest.ID, alice.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case update := <-chB:
		if len(update.Entries) != 1 {
			t.Fatalf("expected alice on the board, got %+v", update.Entries)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber B never received the post-submit leaderboard (watched: %v)", registry.Watched(f.contest.ID))
	}
}

func TestCancelledContestRejectsLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")
	f.register(t, alice)

	cancelled := domain.StatusCancelled
	if _, err := f.catalog.UpdateContest(ctx, f.contest.ID, app.ContestUpdate{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	bob := f.user(t, "bob")
	if _, err := f.contests.Register(ctx, f.contest.ID, bob.ID); !errors.Is(err, domain.ErrRegistrationClosed) {
		t.Fatalf("expected registration closed, got %v", err)
	}
	f.clock.Set(contestStart.Add(time.Minute))
	if _, err := f.contests.Enter(ctx, f.contest.ID, alice.ID); !errors.Is(err, domain.ErrExamClosed) {
		t.Fatalf("expected exam closed, got %v", err)
	}
}

func TestUpcomingAndCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	alice := f.user(t, "alice")

	later, err := f.catalog.CreateContest(ctx, f.admin.ID, app.ContestInput{
		Name:      "Summer cup",
		StartTime: contestStart.Add(24 * time.Hour),
		EndTime:   contestStart.Add(26 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	f.register(t, alice)

	page, err := f.contests.Upcoming(ctx, alice.ID, false, domain.ListQuery{})
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 upcoming contests, got %+v", page)
	}
	for _, item := range page.Items {
		if item.Registered != (item.ID == f.contest.ID) {
			t.Fatalf("unexpected registered flag on %+v", item)
		}
	}

	mine, err := f.contests.Upcoming(ctx, alice.ID, true, domain.ListQuery{})
	if err != nil || mine.Total != 1 || mine.Items[0].ID != f.contest.ID {
		t.Fatalf("expected only the registered contest, got %+v err=%v", mine, err)
	}

	f.clock.Set(contestStart.Add(time.Minute))
	f.enter(t, alice)
	f.answer(t, alice, f.questions[0], true)
	if _, err := f.contests.Submit(ctx, f.contest.ID, alice.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	page, err = f.contests.Upcoming(ctx, alice.ID, false, domain.ListQuery{})
	if err != nil || page.Total != 1 || page.Items[0].ID != later.ID {
		t.Fatalf("expected only the later contest upcoming, got %+v err=%v", page, err)
	}
	completed, err := f.contests.Completed(ctx, alice.ID)
	if err != nil || len(completed) != 1 || completed[0].ID != f.contest.ID || completed[0].Score != 1 {
		t.Fatalf("unexpected completed list %+v err=%v", completed, err)
	}
}
