package app

import (
	"context"
	"errors"
	"time"

	"contest-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// ContestService tracks each user's progression through a contest:
// registered, entered, submitted, scored.
type ContestService struct {
	store  Store
	papers PaperRepository
	hubs   HubRepository
	policy Policy
	now    func() time.Time
	log    logrus.FieldLogger
}

// Option customises a service.
type Option func(*serviceOptions)

type serviceOptions struct {
	policy Policy
	now    func() time.Time
	log    logrus.FieldLogger
}

// WithPolicy overrides the default timeline offsets.
func WithPolicy(p Policy) Option {
	return func(o *serviceOptions) { o.policy = p }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *serviceOptions) { o.log = l }
}

func buildOptions(opts []Option) serviceOptions {
	o := serviceOptions{
		policy: DefaultPolicy(),
		now:    time.Now,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewContestService(store Store, papers PaperRepository, hubs HubRepository, opts ...Option) *ContestService {
	o := buildOptions(opts)
	return &ContestService{
		store:  store,
		papers: papers,
		hubs:   hubs,
		policy: o.policy,
		now:    o.now,
		log:    o.log,
	}
}

// Register creates the user's participation.
func (s *ContestService) Register(ctx context.Context, contestID, userID string) (domain.Participation, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return domain.Participation{}, err
	}
	now := s.now()
	if !ContestWindow(contest, nil, now, s.policy).RegistrationOpen {
		return domain.Participation{}, domain.ErrRegistrationClosed
	}

	p := domain.Participation{UserID: userID, ContestID: contestID, RegisteredAt: now}
	if err := s.store.CreateParticipation(ctx, p); err != nil {
		return domain.Participation{}, err
	}
	s.log.WithFields(logrus.Fields{"contest": contestID, "user": userID}).Info("user registered")
	return p, nil
}

// Unregister deletes a participation that has not been entered yet.
func (s *ContestService) Unregister(ctx context.Context, contestID, userID string) error {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if !ContestWindow(contest, nil, s.now(), s.policy).RegistrationOpen {
		return domain.ErrRegistrationClosed
	}
	if err := s.store.DeleteParticipation(ctx, userID, contestID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"contest": contestID, "user": userID}).Info("user unregistered")
	return nil
}

// Enter stamps the start time and returns the user's exam.
func (s *ContestService) Enter(ctx context.Context, contestID, userID string) (domain.Exam, error) {
	contest, part, err := s.participation(ctx, contestID, userID)
	if err != nil {
		return domain.Exam{}, err
	}
	now := s.now()
	if !ContestWindow(contest, &part, now, s.policy).ExamOpen {
		return domain.Exam{}, domain.ErrExamClosed
	}
	if part.Started() {
		return domain.Exam{}, domain.ErrAlreadyStarted
	}

	// Load everything before stamping so a failed read does not burn the attempt.
	paper, err := s.papers.GetPaper(ctx, contestID)
	if err != nil {
		return domain.Exam{}, err
	}
	choices, err := s.store.ListChoices(ctx, userID, contestID)
	if err != nil {
		return domain.Exam{}, err
	}

	if err := s.store.MarkStarted(ctx, userID, contestID, now); err != nil {
		return domain.Exam{}, err
	}
	part.StartedAt = &now
	s.log.WithFields(logrus.Fields{"contest": contestID, "user": userID}).Info("user entered contest")

	return domain.Exam{
		ContestID: contestID,
		StartedAt: now,
		Deadline:  ContestWindow(contest, &part, now, s.policy).Deadline,
		Questions: buildExamQuestions(userID, paper, choices),
	}, nil
}

// Resume returns the exam of a user who already entered and has not submitted.
func (s *ContestService) Resume(ctx context.Context, contestID, userID string) (domain.Exam, error) {
	contest, part, err := s.participation(ctx, contestID, userID)
	if err != nil {
		return domain.Exam{}, err
	}
	if !part.Started() {
		return domain.Exam{}, domain.ErrNotStarted
	}
	if part.Submitted {
		return domain.Exam{}, domain.ErrAlreadySubmitted
	}
	w := ContestWindow(contest, &part, s.now(), s.policy)
	if !w.SubmissionOpen {
		return domain.Exam{}, domain.ErrDeadlinePassed
	}

	paper, err := s.papers.GetPaper(ctx, contestID)
	if err != nil {
		return domain.Exam{}, err
	}
	choices, err := s.store.ListChoices(ctx, userID, contestID)
	if err != nil {
		return domain.Exam{}, err
	}
	return domain.Exam{
		ContestID: contestID,
		StartedAt: *part.StartedAt,
		Deadline:  w.Deadline,
		Questions: buildExamQuestions(userID, paper, choices),
	}, nil
}

// Answer records the user's choice for one question; the last write wins.
func (s *ContestService) Answer(ctx context.Context, contestID, questionID, answerID, userID string) (domain.Choice, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return domain.Choice{}, err
	}
	paper, err := s.papers.GetPaper(ctx, contestID)
	if err != nil {
		return domain.Choice{}, err
	}
	question, ok := paper.Question(questionID)
	if !ok {
		return domain.Choice{}, domain.ErrQuestionNotInContest
	}
	now := s.now()
	if !ContestWindow(contest, nil, now, s.policy).AnswerOpen {
		return domain.Choice{}, domain.ErrAnswerClosed
	}

	part, err := s.store.GetParticipation(ctx, userID, contestID)
	if err != nil {
		return domain.Choice{}, err
	}
	if !part.Started() {
		return domain.Choice{}, domain.ErrNotStarted
	}
	if part.Submitted {
		return domain.Choice{}, domain.ErrAlreadySubmitted
	}
	if !question.HasAnswer(answerID) {
		return domain.Choice{}, domain.ErrAnswerNotFound
	}

	choice := domain.Choice{
		UserID:     userID,
		ContestID:  contestID,
		QuestionID: questionID,
		AnswerID:   answerID,
		UpdatedAt:  now,
	}
	if err := s.store.UpsertChoice(ctx, choice); err != nil {
		return domain.Choice{}, err
	}
	return choice, nil
}

// Submit scores the recorded choices and closes the attempt.
func (s *ContestService) Submit(ctx context.Context, contestID, userID string) (domain.Result, error) {
	contest, part, err := s.participation(ctx, contestID, userID)
	if err != nil {
		return domain.Result{}, err
	}
	if !part.Started() {
		return domain.Result{}, domain.ErrNotStarted
	}
	if part.Submitted {
		return domain.Result{}, domain.ErrAlreadySubmitted
	}
	now := s.now()
	if !ContestWindow(contest, &part, now, s.policy).SubmissionOpen {
		return domain.Result{}, domain.ErrDeadlinePassed
	}

	paper, err := s.papers.GetPaper(ctx, contestID)
	if err != nil {
		return domain.Result{}, err
	}
	choices, err := s.store.ListChoices(ctx, userID, contestID)
	if err != nil {
		return domain.Result{}, err
	}
	score := Score(paper.AnswerKey(), choices)

	if err := s.store.MarkSubmitted(ctx, userID, contestID, score, now); err != nil {
		return domain.Result{}, err
	}
	s.log.WithFields(logrus.Fields{"contest": contestID, "user": userID, "score": score}).Info("contest submitted")

	s.publish(ctx, contestID)

	return domain.Result{
		ContestID:   contestID,
		UserID:      userID,
		Score:       score,
		Total:       len(paper.Questions),
		SubmittedAt: now,
	}, nil
}

// Result returns the stored score of a submitted participation.
func (s *ContestService) Result(ctx context.Context, contestID, userID string) (domain.Result, error) {
	_, part, err := s.participation(ctx, contestID, userID)
	if err != nil {
		return domain.Result{}, err
	}
	if !part.Submitted {
		return domain.Result{}, domain.ErrNotSubmitted
	}
	paper, err := s.papers.GetPaper(ctx, contestID)
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Result{
		ContestID:   contestID,
		UserID:      userID,
		Score:       part.Result,
		Total:       len(paper.Questions),
		SubmittedAt: submittedAt(part),
	}, nil
}

// Leaderboard ranks the submitted participations of a contest.
func (s *ContestService) Leaderboard(ctx context.Context, contestID string) (domain.Leaderboard, error) {
	if _, err := s.store.GetContest(ctx, contestID); err != nil {
		return domain.Leaderboard{}, err
	}
	parts, err := s.store.ListSubmitted(ctx, contestID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.UserID)
	}
	users, err := s.store.UsersByID(ctx, ids)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{
		ContestID: contestID,
		Entries:   rankEntries(parts, users),
		UpdatedAt: s.now(),
	}, nil
}

// Subscribe returns a channel of leaderboard snapshots, primed with the current board.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ContestService) Subscribe(ctx context.Context, contestID string) (<-chan domain.Leaderboard, func(), error) {
	lb, err := s.Leaderboard(ctx, contestID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hubs.Subscribe(contestID, lb)
	return ch, cancel, nil
}

// Registrations lists everyone registered for a contest.
func (s *ContestService) Registrations(ctx context.Context, contestID string) ([]domain.Registration, error) {
	if _, err := s.store.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	return s.store.ListRegistrations(ctx, contestID)
}

// Upcoming lists contests that have not started yet, flagged with the user's
// registration. With registeredOnly only registered contests are returned.
func (s *ContestService) Upcoming(ctx context.Context, userID string, registeredOnly bool, q domain.ListQuery) (domain.Page[domain.ContestListing], error) {
	q = NormalizeQuery(q)
	registered, err := s.userContests(ctx, userID)
	if err != nil {
		return domain.Page[domain.ContestListing]{}, err
	}

	if registeredOnly {
		ids := make([]string, 0, len(registered))
		for id := range registered {
			ids = append(ids, id)
		}
		byID, err := s.store.ContestsByID(ctx, ids)
		if err != nil {
			return domain.Page[domain.ContestListing]{}, err
		}
		now := s.now()
		listings := make([]domain.ContestListing, 0, len(byID))
		for _, c := range byID {
			if c.Status == domain.StatusCreated && c.StartTime.After(now) {
				listings = append(listings, domain.ContestListing{Contest: c, Registered: true})
			}
		}
		sortListings(listings)
		return paginate(listings, q), nil
	}

	contests, total, err := s.store.ListContests(ctx, ContestFilter{
		Status:      domain.StatusCreated,
		StartsAfter: s.now(),
	}, q)
	if err != nil {
		return domain.Page[domain.ContestListing]{}, err
	}
	listings := make([]domain.ContestListing, 0, len(contests))
	for _, c := range contests {
		_, ok := registered[c.ID]
		listings = append(listings, domain.ContestListing{Contest: c, Registered: ok})
	}
	return domain.NewPage(listings, total, q), nil
}

// Completed lists the contests the user submitted, newest first.
func (s *ContestService) Completed(ctx context.Context, userID string) ([]domain.CompletedContest, error) {
	parts, err := s.store.ListParticipationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Submitted {
			ids = append(ids, p.ContestID)
		}
	}
	byID, err := s.store.ContestsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CompletedContest, 0, len(ids))
	for _, p := range parts {
		c, ok := byID[p.ContestID]
		if !p.Submitted || !ok {
			continue
		}
		out = append(out, domain.CompletedContest{Contest: c, Score: p.Result, SubmittedAt: submittedAt(p)})
	}
	sortCompleted(out)
	return out, nil
}

func (s *ContestService) participation(ctx context.Context, contestID, userID string) (domain.Contest, domain.Participation, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return domain.Contest{}, domain.Participation{}, err
	}
	part, err := s.store.GetParticipation(ctx, userID, contestID)
	if err != nil {
		return domain.Contest{}, domain.Participation{}, err
	}
	return contest, part, nil
}

func (s *ContestService) userContests(ctx context.Context, userID string) (map[string]domain.Participation, error) {
	parts, err := s.store.ListParticipationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Participation, len(parts))
	for _, p := range parts {
		out[p.ContestID] = p
	}
	return out, nil
}

// publish pushes a fresh leaderboard to live subscribers, if any.
func (s *ContestService) publish(ctx context.Context, contestID string) {
	if !s.hubs.Watched(contestID) {
		return
	}
	lb, err := s.Leaderboard(ctx, contestID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.WithError(err).WithField("contest", contestID).Warn("leaderboard publish failed")
		}
		return
	}
	s.hubs.Publish(contestID, lb)
}

func submittedAt(p domain.Participation) time.Time {
	if p.SubmittedAt == nil {
		return time.Time{}
	}
	return *p.SubmittedAt
}
