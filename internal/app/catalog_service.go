package app

import (
	"context"
	"strings"
	"time"

	"contest-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CatalogService manages users, categories, questions, contests and the
// questions linked to each contest.
type CatalogService struct {
	store  Store
	papers PaperRepository
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewCatalogService(store Store, papers PaperRepository, opts ...Option) *CatalogService {
	o := buildOptions(opts)
	return &CatalogService{store: store, papers: papers, now: o.now, log: o.log}
}

type UserInput struct {
	Username string
	FullName string
	Role     domain.Role
}

// UserUpdate patches an account; nil fields are kept.
type UserUpdate struct {
	Username *string
	FullName *string
	Role     *domain.Role
}

type CategoryInput struct {
	Name        string
	Description string
}

type AnswerInput struct {
	Content     string
	Description string
	Correct     bool
}

type QuestionInput struct {
	Content     string
	Description string
	CategoryID  string
	Answers     []AnswerInput
}

// QuestionUpdate patches a question. Nil fields are kept; a nil Answers
// slice keeps the existing answers, a non-nil one replaces them.
type QuestionUpdate struct {
	Content     *string
	Description *string
	CategoryID  *string
	Answers     []AnswerInput
}

type ContestInput struct {
	Name            string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
}

// ContestUpdate patches a contest; nil fields are kept.
type ContestUpdate struct {
	Name            *string
	Description     *string
	StartTime       *time.Time
	EndTime         *time.Time
	DurationMinutes *int
	Status          *domain.ContestStatus
}

func (s *CatalogService) CreateUser(ctx context.Context, in UserInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return domain.User{}, domain.Invalidf("username is required")
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return domain.User{}, domain.Invalidf("unknown role")
	}
	now := s.now()
	user := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		FullName:  strings.TrimSpace(in.FullName),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *CatalogService) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *CatalogService) UpdateUser(ctx context.Context, id string, in UserUpdate) (domain.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return domain.User{}, domain.Invalidf("username is required")
		}
		user.Username = username
	}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Role != nil {
		if *in.Role != domain.RoleUser && *in.Role != domain.RoleAdmin {
			return domain.User{}, domain.Invalidf("unknown role")
		}
		user.Role = *in.Role
	}
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// DeleteUser removes the account together with its participations and choices.
func (s *CatalogService) DeleteUser(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user", id).Info("user deleted")
	return nil
}

func (s *CatalogService) ListUsers(ctx context.Context, q domain.ListQuery) (domain.Page[domain.User], error) {
	q = NormalizeQuery(q)
	users, total, err := s.store.ListUsers(ctx, q)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	return domain.NewPage(users, total, q), nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Category{}, domain.Invalidf("category name is required")
	}
	now := s.now()
	category := domain.Category{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (domain.Category, error) {
	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		category.Name = name
	}
	if in.Description != "" {
		category.Description = in.Description
	}
	category.UpdatedAt = s.now()
	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// DeleteCategory removes the category; its questions become uncategorised.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	return s.store.DeleteCategory(ctx, id)
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context, q domain.ListQuery) (domain.Page[domain.Category], error) {
	q = NormalizeQuery(q)
	items, total, err := s.store.ListCategories(ctx, q)
	if err != nil {
		return domain.Page[domain.Category]{}, err
	}
	return domain.NewPage(items, total, q), nil
}

func (s *CatalogService) CreateQuestion(ctx context.Context, in QuestionInput) (domain.Question, error) {
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return domain.Question{}, err
	}
	now := s.now()
	question := domain.Question{
		ID:          uuid.NewString(),
		Content:     strings.TrimSpace(in.Content),
		Description: in.Description,
		CategoryID:  in.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	question.Answers = newAnswers(question.ID, in.Answers)
	if err := question.Validate(); err != nil {
		return domain.Question{}, err
	}
	if err := s.store.CreateQuestion(ctx, question); err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

func (s *CatalogService) UpdateQuestion(ctx context.Context, id string, in QuestionUpdate) (domain.Question, error) {
	question, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if in.Content != nil {
		question.Content = strings.TrimSpace(*in.Content)
	}
	if in.Description != nil {
		question.Description = *in.Description
	}
	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, *in.CategoryID); err != nil {
			return domain.Question{}, err
		}
		question.CategoryID = *in.CategoryID
	}
	if in.Answers != nil {
		question.Answers = newAnswers(question.ID, in.Answers)
	}
	if err := question.Validate(); err != nil {
		return domain.Question{}, err
	}
	question.UpdatedAt = s.now()

	if err := s.store.UpdateQuestion(ctx, question); err != nil {
		return domain.Question{}, err
	}
	s.papers.InvalidateAll(ctx)
	return question, nil
}

func (s *CatalogService) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.papers.InvalidateAll(ctx)
	return nil
}

func (s *CatalogService) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	return s.store.GetQuestion(ctx, id)
}

func (s *CatalogService) ListQuestions(ctx context.Context, categoryID string, q domain.ListQuery) (domain.Page[domain.Question], error) {
	q = NormalizeQuery(q)
	items, total, err := s.store.ListQuestions(ctx, categoryID, q)
	if err != nil {
		return domain.Page[domain.Question]{}, err
	}
	return domain.NewPage(items, total, q), nil
}

func (s *CatalogService) CreateContest(ctx context.Context, creatorID string, in ContestInput) (domain.Contest, error) {
	now := s.now()
	contest := domain.Contest{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		DurationMinutes: in.DurationMinutes,
		Status:          domain.StatusCreated,
		CreatedBy:       creatorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := contest.Validate(); err != nil {
		return domain.Contest{}, err
	}
	if err := s.store.CreateContest(ctx, contest); err != nil {
		return domain.Contest{}, err
	}
	s.log.WithFields(logrus.Fields{"contest": contest.ID, "creator": creatorID}).Info("contest created")
	return contest, nil
}

func (s *CatalogService) UpdateContest(ctx context.Context, id string, in ContestUpdate) (domain.Contest, error) {
	contest, err := s.store.GetContest(ctx, id)
	if err != nil {
		return domain.Contest{}, err
	}
	if in.Name != nil {
		contest.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		contest.Description = *in.Description
	}
	if in.StartTime != nil {
		contest.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		contest.EndTime = *in.EndTime
	}
	if in.DurationMinutes != nil {
		contest.DurationMinutes = *in.DurationMinutes
	}
	if in.Status != nil {
		contest.Status = *in.Status
	}
	if err := contest.Validate(); err != nil {
		return domain.Contest{}, err
	}
	contest.UpdatedAt = s.now()
	if err := s.store.UpdateContest(ctx, contest); err != nil {
		return domain.Contest{}, err
	}
	return contest, nil
}

func (s *CatalogService) DeleteContest(ctx context.Context, id string) error {
	if err := s.store.DeleteContest(ctx, id); err != nil {
		return err
	}
	s.papers.Invalidate(ctx, id)
	s.log.WithField("contest", id).Info("contest deleted")
	return nil
}

func (s *CatalogService) GetContest(ctx context.Context, id string) (domain.Contest, error) {
	return s.store.GetContest(ctx, id)
}

func (s *CatalogService) ListContests(ctx context.Context, status domain.ContestStatus, q domain.ListQuery) (domain.Page[domain.Contest], error) {
	q = NormalizeQuery(q)
	items, total, err := s.store.ListContests(ctx, ContestFilter{Status: status}, q)
	if err != nil {
		return domain.Page[domain.Contest]{}, err
	}
	return domain.NewPage(items, total, q), nil
}

// ContestQuestions returns the questions linked to a contest, answers included.
func (s *CatalogService) ContestQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	if _, err := s.store.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	paper, err := s.papers.GetPaper(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return paper.Questions, nil
}

// AddQuestions links questions to a contest. Already linked ids are skipped.
func (s *CatalogService) AddQuestions(ctx context.Context, contestID string, questionIDs []string) (int, error) {
	if _, err := s.store.GetContest(ctx, contestID); err != nil {
		return 0, err
	}
	if len(questionIDs) == 0 {
		return 0, domain.Invalidf("questionIds is required")
	}
	ok, err := s.store.QuestionsExist(ctx, questionIDs)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrQuestionNotFound
	}
	return s.link(ctx, contestID, questionIDs)
}

// AddCategory links every question of a category to a contest.
func (s *CatalogService) AddCategory(ctx context.Context, contestID, categoryID string) (int, error) {
	if _, err := s.store.GetContest(ctx, contestID); err != nil {
		return 0, err
	}
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return 0, err
	}
	ids, err := s.store.QuestionIDsByCategory(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.link(ctx, contestID, ids)
}

func (s *CatalogService) RemoveQuestion(ctx context.Context, contestID, questionID string) error {
	if _, err := s.store.GetContest(ctx, contestID); err != nil {
		return err
	}
	if err := s.store.UnlinkQuestion(ctx, contestID, questionID); err != nil {
		return err
	}
	s.papers.Invalidate(ctx, contestID)
	return nil
}

func (s *CatalogService) RemoveAllQuestions(ctx context.Context, contestID string) (int, error) {
	if _, err := s.store.GetContest(ctx, contestID); err != nil {
		return 0, err
	}
	n, err := s.store.UnlinkAll(ctx, contestID)
	if err != nil {
		return 0, err
	}
	s.papers.Invalidate(ctx, contestID)
	return n, nil
}

func (s *CatalogService) link(ctx context.Context, contestID string, ids []string) (int, error) {
	n, err := s.store.LinkQuestions(ctx, contestID, ids)
	if err != nil {
		return 0, err
	}
	s.papers.Invalidate(ctx, contestID)
	return n, nil
}

func (s *CatalogService) checkCategory(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	_, err := s.store.GetCategory(ctx, categoryID)
	return err
}

func newAnswers(questionID string, in []AnswerInput) []domain.Answer {
	answers := make([]domain.Answer, 0, len(in))
	for _, a := range in {
		answers = append(answers, domain.Answer{
			ID:          uuid.NewString(),
			QuestionID:  questionID,
			Content:     strings.TrimSpace(a.Content),
			Description: a.Description,
			Correct:     a.Correct,
		})
	}
	return answers
}
