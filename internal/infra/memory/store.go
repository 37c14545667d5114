package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
)

// Store is an in-memory implementation of app.Store and app.PaperLoader.
// A single mutex makes every conditional write atomic.
type Store struct {
	mu             sync.RWMutex
	users          map[string]domain.User
	categories     map[string]domain.Category
	questions      map[string]domain.Question
	contests       map[string]domain.Contest
	links          map[string][]string
	participations map[participationKey]domain.Participation
	choices        map[choiceKey]domain.Choice
}

type participationKey struct {
	userID    string
	contestID string
}

type choiceKey struct {
	userID     string
	contestID  string
	questionID string
}

var _ app.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:          make(map[string]domain.User),
		categories:     make(map[string]domain.Category),
		questions:      make(map[string]domain.Question),
		contests:       make(map[string]domain.Contest),
		links:          make(map[string][]string),
		participations: make(map[participationKey]domain.Participation),
		choices:        make(map[choiceKey]domain.Choice),
	}
}

// users

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for id, u := range s.users {
		if id != user.ID && u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, id)
	for k := range s.participations {
		if k.userID == id {
			delete(s.participations, k)
		}
	}
	for k := range s.choices {
		if k.userID == id {
			delete(s.choices, k)
		}
	}
	return nil
}

func (s *Store) ListUsers(_ context.Context, q domain.ListQuery) ([]domain.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if matches(q.Keyword, u.Username, u.FullName) {
			items = append(items, u)
		}
	}
	sortNewest(items, func(u domain.User) (time.Time, string) { return u.CreatedAt, u.ID })
	page, total := window(items, q)
	return page, total, nil
}

func (s *Store) UsersByID(_ context.Context, ids []string) (map[string]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// categories

func (s *Store) CreateCategory(_ context.Context, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.ID] = category
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.ID]; !ok {
		return domain.ErrCategoryNotFound
	}
	s.categories[category.ID] = category
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(s.categories, id)
	for qid, q := range s.questions {
		if q.CategoryID == id {
			q.CategoryID = ""
			s.questions[qid] = q
		}
	}
	return nil
}

func (s *Store) GetCategory(_ context.Context, id string) (domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, q domain.ListQuery) ([]domain.Category, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if matches(q.Keyword, c.Name, c.Description) {
			items = append(items, c)
		}
	}
	sortNewest(items, func(c domain.Category) (time.Time, string) { return c.CreatedAt, c.ID })
	page, total := window(items, q)
	return page, total, nil
}

// questions

func (s *Store) CreateQuestion(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[question.ID] = cloneQuestion(question)
	return nil
}

func (s *Store) UpdateQuestion(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[question.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.questions[question.ID] = cloneQuestion(question)
	return nil
}

func (s *Store) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.questions, id)
	for contestID, ids := range s.links {
		s.links[contestID] = without(ids, id)
	}
	return nil
}

func (s *Store) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *Store) ListQuestions(_ context.Context, categoryID string, q domain.ListQuery) ([]domain.Question, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.Question, 0, len(s.questions))
	for _, question := range s.questions {
		if categoryID != "" && question.CategoryID != categoryID {
			continue
		}
		if matches(q.Keyword, question.Content, question.Description) {
			items = append(items, cloneQuestion(question))
		}
	}
	sortNewest(items, func(q domain.Question) (time.Time, string) { return q.CreatedAt, q.ID })
	page, total := window(items, q)
	return page, total, nil
}

func (s *Store) QuestionIDsByCategory(_ context.Context, categoryID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, q := range s.questions {
		if q.CategoryID == categoryID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) QuestionsExist(_ context.Context, ids []string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if _, ok := s.questions[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// contests

func (s *Store) CreateContest(_ context.Context, contest domain.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contests[contest.ID] = contest
	return nil
}

func (s *Store) UpdateContest(_ context.Context, contest domain.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contests[contest.ID]; !ok {
		return domain.ErrContestNotFound
	}
	s.contests[contest.ID] = contest
	return nil
}

func (s *Store) DeleteContest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contests[id]; !ok {
		return domain.ErrContestNotFound
	}
	delete(s.contests, id)
	delete(s.links, id)
	for k := range s.participations {
		if k.contestID == id {
			delete(s.participations, k)
		}
	}
	for k := range s.choices {
		if k.contestID == id {
			delete(s.choices, k)
		}
	}
	return nil
}

func (s *Store) GetContest(_ context.Context, id string) (domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contests[id]
	if !ok {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	return c, nil
}

func (s *Store) ContestsByID(_ context.Context, ids []string) (map[string]domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Contest, len(ids))
	for _, id := range ids {
		if c, ok := s.contests[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *Store) ListContests(_ context.Context, filter app.ContestFilter, q domain.ListQuery) ([]domain.Contest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.Contest, 0, len(s.contests))
	for _, c := range s.contests {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if !filter.StartsAfter.IsZero() && !c.StartTime.After(filter.StartsAfter) {
			continue
		}
		if matches(q.Keyword, c.Name, c.Description) {
			items = append(items, c)
		}
	}
	sortNewest(items, func(c domain.Contest) (time.Time, string) { return c.CreatedAt, c.ID })
	page, total := window(items, q)
	return page, total, nil
}

func (s *Store) AdvanceStatuses(_ context.Context, now time.Time) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	started, finished := 0, 0
	for id, c := range s.contests {
		if c.Status == domain.StatusCreated && !c.StartTime.After(now) {
			c.Status = domain.StatusInProgress
			c.UpdatedAt = now
			s.contests[id] = c
			started++
		}
	}
	for id, c := range s.contests {
		if c.Status == domain.StatusInProgress && !c.EndTime.After(now) {
			c.Status = domain.StatusFinished
			c.UpdatedAt = now
			s.contests[id] = c
			finished++
		}
	}
	return started, finished, nil
}

// links

func (s *Store) LinkQuestions(_ context.Context, contestID string, questionIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contests[contestID]; !ok {
		return 0, domain.ErrContestNotFound
	}
	existing := make(map[string]struct{}, len(s.links[contestID]))
	for _, id := range s.links[contestID] {
		existing[id] = struct{}{}
	}
	added := 0
	for _, id := range questionIDs {
		if _, ok := s.questions[id]; !ok {
			return added, domain.ErrQuestionNotFound
		}
		if _, ok := existing[id]; ok {
			continue
		}
		existing[id] = struct{}{}
		s.links[contestID] = append(s.links[contestID], id)
		added++
	}
	return added, nil
}

func (s *Store) UnlinkQuestion(_ context.Context, contestID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.links[contestID]
	remaining := without(ids, questionID)
	if len(remaining) == len(ids) {
		return domain.ErrQuestionNotInContest
	}
	s.links[contestID] = remaining
	return nil
}

func (s *Store) UnlinkAll(_ context.Context, contestID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.links[contestID])
	delete(s.links, contestID)
	return n, nil
}

// LoadPaper returns the linked questions in link order.
func (s *Store) LoadPaper(_ context.Context, contestID string) (domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.contests[contestID]; !ok {
		return domain.Paper{}, domain.ErrContestNotFound
	}
	paper := domain.Paper{ContestID: contestID, Questions: []domain.Question{}}
	for _, id := range s.links[contestID] {
		if q, ok := s.questions[id]; ok {
			paper.Questions = append(paper.Questions, cloneQuestion(q))
		}
	}
	return paper, nil
}

// participations

func (s *Store) CreateParticipation(_ context.Context, p domain.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participationKey{p.UserID, p.ContestID}
	if _, ok := s.participations[key]; ok {
		return domain.ErrAlreadyRegistered
	}
	s.participations[key] = p
	return nil
}

func (s *Store) GetParticipation(_ context.Context, userID, contestID string) (domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participations[participationKey{userID, contestID}]
	if !ok {
		return domain.Participation{}, domain.ErrNotRegistered
	}
	return p, nil
}

func (s *Store) DeleteParticipation(_ context.Context, userID, contestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participationKey{userID, contestID}
	p, ok := s.participations[key]
	if !ok {
		return domain.ErrNotRegistered
	}
	if p.Started() {
		return domain.ErrAlreadyStarted
	}
	delete(s.participations, key)
	return nil
}

func (s *Store) MarkStarted(_ context.Context, userID, contestID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participationKey{userID, contestID}
	p, ok := s.participations[key]
	if !ok {
		return domain.ErrNotRegistered
	}
	if p.Started() {
		return domain.ErrAlreadyStarted
	}
	p.StartedAt = &at
	s.participations[key] = p
	return nil
}

func (s *Store) MarkSubmitted(_ context.Context, userID, contestID string, score int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participationKey{userID, contestID}
	p, ok := s.participations[key]
	if !ok {
		return domain.ErrNotRegistered
	}
	if p.Submitted {
		return domain.ErrAlreadySubmitted
	}
	p.Submitted = true
	p.Result = score
	p.SubmittedAt = &at
	s.participations[key] = p
	return nil
}

func (s *Store) ListRegistrations(_ context.Context, contestID string) ([]domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Registration
	for k, p := range s.participations {
		if k.contestID != contestID {
			continue
		}
		u := s.users[k.userID]
		out = append(out, domain.Registration{Participation: p, Username: u.Username, FullName: u.FullName})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Store) ListSubmitted(_ context.Context, contestID string) ([]domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Participation
	for k, p := range s.participations {
		if k.contestID == contestID && p.Submitted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListParticipationsByUser(_ context.Context, userID string) ([]domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Participation
	for k, p := range s.participations {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// choices

func (s *Store) UpsertChoice(_ context.Context, choice domain.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.choices[choiceKey{choice.UserID, choice.ContestID, choice.QuestionID}] = choice
	return nil
}

func (s *Store) ListChoices(_ context.Context, userID, contestID string) ([]domain.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Choice
	for k, c := range s.choices {
		if k.userID == userID && k.contestID == contestID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func cloneQuestion(q domain.Question) domain.Question {
	answers := make([]domain.Answer, len(q.Answers))
	copy(answers, q.Answers)
	q.Answers = answers
	return q
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func matches(keyword string, fields ...string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), keyword) {
			return true
		}
	}
	return false
}

// sortNewest orders by creation time desc, then id.
func sortNewest[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi < idj
	})
}

func window[T any](items []T, q domain.ListQuery) ([]T, int) {
	total := len(items)
	from := q.Offset
	if from > total {
		from = total
	}
	to := total
	if q.Limit > 0 && from+q.Limit < total {
		to = from + q.Limit
	}
	return items[from:to], total
}
