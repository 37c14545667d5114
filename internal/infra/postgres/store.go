package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

// Store is the bun-backed implementation of app.Store.
type Store struct {
	db *bun.DB
}

var _ app.Store = (*Store)(nil)

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func sqlState(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}

// notFound maps a missing row, or an id that is not a valid uuid, to target.
func notFound(err error, target error) error {
	if errors.Is(err, sql.ErrNoRows) || sqlState(err) == codeInvalidText {
		return target
	}
	return err
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func keywordFilter(keyword string, columns ...string) func(*bun.SelectQuery) *bun.SelectQuery {
	pattern := "%" + strings.TrimSpace(keyword) + "%"
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, col := range columns {
			q = q.WhereOr("? ILIKE ?", bun.Ident(col), pattern)
		}
		return q
	}
}

func paged(q *bun.SelectQuery, lq domain.ListQuery) *bun.SelectQuery {
	if lq.Limit > 0 {
		q = q.Limit(lq.Limit)
	}
	return q.Offset(lq.Offset)
}

// users

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.db.NewInsert().Model(userFromDomain(user)).Exec(ctx)
	if sqlState(err) == codeUniqueViolation {
		return domain.ErrUsernameTaken
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	var row userRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) error {
	res, err := s.db.NewUpdate().Model(userFromDomain(user)).
		Column("username", "full_name", "role", "updated_at").
		WherePK().
		Exec(ctx)
	if sqlState(err) == codeUniqueViolation {
		return domain.ErrUsernameTaken
	}
	if err != nil {
		return notFound(err, domain.ErrUserNotFound)
	}
	if affected(res) == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// DeleteUser relies on ON DELETE CASCADE for participations and, through them, choices.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*userRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrUserNotFound)
	}
	if affected(res) == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, lq domain.ListQuery) ([]domain.User, int, error) {
	var rows []userRow
	q := s.db.NewSelect().Model(&rows)
	if strings.TrimSpace(lq.Keyword) != "" {
		q = q.WhereGroup(" AND ", keywordFilter(lq.Keyword, "username", "full_name"))
	}
	total, err := paged(q.Order("created_at DESC", "id ASC"), lq).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) UsersByID(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("users by id: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r.toDomain()
	}
	return out, nil
}

// categories

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) error {
	_, err := s.db.NewInsert().Model(categoryFromDomain(category)).Exec(ctx)
	return err
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) error {
	res, err := s.db.NewUpdate().Model(categoryFromDomain(category)).
		Column("name", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrCategoryNotFound)
	}
	if affected(res) == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*categoryRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrCategoryNotFound)
	}
	if affected(res) == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	var row categoryRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Category{}, notFound(err, domain.ErrCategoryNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ListCategories(ctx context.Context, lq domain.ListQuery) ([]domain.Category, int, error) {
	var rows []categoryRow
	q := s.db.NewSelect().Model(&rows)
	if strings.TrimSpace(lq.Keyword) != "" {
		q = q.WhereGroup(" AND ", keywordFilter(lq.Keyword, "name", "description"))
	}
	total, err := paged(q.Order("created_at DESC", "id ASC"), lq).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

// questions

func answersByPosition(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("a.position ASC")
}

func (s *Store) CreateQuestion(ctx context.Context, question domain.Question) error {
	row, answers := questionFromDomain(question)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			if sqlState(err) == codeForeignKeyViolation {
				return domain.ErrCategoryNotFound
			}
			return err
		}
		if len(answers) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&answers).Exec(ctx)
		return err
	})
}

func (s *Store) UpdateQuestion(ctx context.Context, question domain.Question) error {
	row, answers := questionFromDomain(question)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(row).
			Column("content", "description", "category_id", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			if sqlState(err) == codeForeignKeyViolation {
				return domain.ErrCategoryNotFound
			}
			return notFound(err, domain.ErrQuestionNotFound)
		}
		if affected(res) == 0 {
			return domain.ErrQuestionNotFound
		}
		if _, err := tx.NewDelete().Model((*answerRow)(nil)).Where("question_id = ?", question.ID).Exec(ctx); err != nil {
			return err
		}
		if len(answers) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&answers).Exec(ctx)
		return err
	})
}

func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*questionRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrQuestionNotFound)
	}
	if affected(res) == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var row questionRow
	err := s.db.NewSelect().Model(&row).
		Relation("Answers", answersByPosition).
		Where("q.id = ?", id).
		Scan(ctx)
	if err != nil {
		return domain.Question{}, notFound(err, domain.ErrQuestionNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ListQuestions(ctx context.Context, categoryID string, lq domain.ListQuery) ([]domain.Question, int, error) {
	var rows []questionRow
	q := s.db.NewSelect().Model(&rows).Relation("Answers", answersByPosition)
	if categoryID != "" {
		q = q.Where("q.category_id = ?", categoryID)
	}
	if strings.TrimSpace(lq.Keyword) != "" {
		q = q.WhereGroup(" AND ", keywordFilter(lq.Keyword, "q.content", "q.description"))
	}
	total, err := paged(q.Order("q.created_at DESC", "q.id ASC"), lq).ScanAndCount(ctx)
	if err != nil {
		if sqlState(err) == codeInvalidText {
			return []domain.Question{}, 0, nil
		}
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) QuestionIDsByCategory(ctx context.Context, categoryID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().Model((*questionRow)(nil)).
		Column("id").
		Where("category_id = ?", categoryID).
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		if sqlState(err) == codeInvalidText {
			return nil, nil
		}
		return nil, fmt.Errorf("question ids by category: %w", err)
	}
	return ids, nil
}

func (s *Store) QuestionsExist(ctx context.Context, ids []string) (bool, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return true, nil
	}
	n, err := s.db.NewSelect().Model((*questionRow)(nil)).Where("id IN (?)", bun.In(unique)).Count(ctx)
	if err != nil {
		if sqlState(err) == codeInvalidText {
			return false, nil
		}
		return false, fmt.Errorf("questions exist: %w", err)
	}
	return n == len(unique), nil
}

// contests

func (s *Store) CreateContest(ctx context.Context, contest domain.Contest) error {
	_, err := s.db.NewInsert().Model(contestFromDomain(contest)).Exec(ctx)
	return err
}

func (s *Store) UpdateContest(ctx context.Context, contest domain.Contest) error {
	res, err := s.db.NewUpdate().Model(contestFromDomain(contest)).
		Column("name", "description", "start_time", "end_time", "duration", "status", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrContestNotFound)
	}
	if affected(res) == 0 {
		return domain.ErrContestNotFound
	}
	return nil
}

func (s *Store) DeleteContest(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*contestRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrContestNotFound)
	}
	if affected(res) == 0 {
		return domain.ErrContestNotFound
	}
	return nil
}

func (s *Store) GetContest(ctx context.Context, id string) (domain.Contest, error) {
	var row contestRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Contest{}, notFound(err, domain.ErrContestNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ContestsByID(ctx context.Context, ids []string) (map[string]domain.Contest, error) {
	out := make(map[string]domain.Contest, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []contestRow
	if err := s.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("contests by id: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r.toDomain()
	}
	return out, nil
}

func (s *Store) ListContests(ctx context.Context, filter app.ContestFilter, lq domain.ListQuery) ([]domain.Contest, int, error) {
	var rows []contestRow
	q := s.db.NewSelect().Model(&rows)
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.StartsAfter.IsZero() {
		q = q.Where("start_time > ?", filter.StartsAfter)
	}
	if strings.TrimSpace(lq.Keyword) != "" {
		q = q.WhereGroup(" AND ", keywordFilter(lq.Keyword, "name", "description"))
	}
	total, err := paged(q.Order("created_at DESC", "id ASC"), lq).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list contests: %w", err)
	}
	out := make([]domain.Contest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) AdvanceStatuses(ctx context.Context, now time.Time) (int, int, error) {
	var started, finished int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*contestRow)(nil)).
			Set("status = ?", string(domain.StatusInProgress)).
			Set("updated_at = ?", now).
			Where("status = ?", string(domain.StatusCreated)).
			Where("start_time <= ?", now).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("start contests: %w", err)
		}
		started = affected(res)

		res, err = tx.NewUpdate().Model((*contestRow)(nil)).
			Set("status = ?", string(domain.StatusFinished)).
			Set("updated_at = ?", now).
			Where("status = ?", string(domain.StatusInProgress)).
			Where("end_time <= ?", now).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("finish contests: %w", err)
		}
		finished = affected(res)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return started, finished, nil
}

// links

func (s *Store) LinkQuestions(ctx context.Context, contestID string, questionIDs []string) (int, error) {
	if _, err := s.GetContest(ctx, contestID); err != nil {
		return 0, err
	}
	unique := dedupe(questionIDs)
	if len(unique) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]*linkRow, 0, len(unique))
	for _, id := range unique {
		rows = append(rows, &linkRow{ContestID: contestID, QuestionID: id, CreatedAt: now})
	}
	res, err := s.db.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		switch sqlState(err) {
		case codeForeignKeyViolation, codeInvalidText:
			return 0, domain.ErrQuestionNotFound
		}
		return 0, fmt.Errorf("link questions: %w", err)
	}
	return affected(res), nil
}

func (s *Store) UnlinkQuestion(ctx context.Context, contestID, questionID string) error {
	res, err := s.db.NewDelete().Model((*linkRow)(nil)).
		Where("contest_id = ?", contestID).
		Where("question_id = ?", questionID).
		Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrQuestionNotInContest)
	}
	if affected(res) == 0 {
		return domain.ErrQuestionNotInContest
	}
	return nil
}

func (s *Store) UnlinkAll(ctx context.Context, contestID string) (int, error) {
	res, err := s.db.NewDelete().Model((*linkRow)(nil)).Where("contest_id = ?", contestID).Exec(ctx)
	if err != nil {
		if sqlState(err) == codeInvalidText {
			return 0, nil
		}
		return 0, fmt.Errorf("unlink all: %w", err)
	}
	return affected(res), nil
}

// participations

func (s *Store) CreateParticipation(ctx context.Context, p domain.Participation) error {
	row := &participationRow{
		UserID:       p.UserID,
		ContestID:    p.ContestID,
		RegisteredAt: p.RegisteredAt,
		StartedAt:    p.StartedAt,
		Submitted:    p.Submitted,
		Result:       p.Result,
		SubmittedAt:  p.SubmittedAt,
	}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	switch sqlState(err) {
	case codeUniqueViolation:
		return domain.ErrAlreadyRegistered
	case codeForeignKeyViolation:
		return domain.ErrContestNotFound
	}
	return err
}

func (s *Store) GetParticipation(ctx context.Context, userID, contestID string) (domain.Participation, error) {
	var row participationRow
	err := s.db.NewSelect().Model(&row).
		Where("user_id = ?", userID).
		Where("contest_id = ?", contestID).
		Scan(ctx)
	if err != nil {
		return domain.Participation{}, notFound(err, domain.ErrNotRegistered)
	}
	return row.toDomain(), nil
}

// conditionalMiss resolves a zero-row conditional write into the reason it missed.
func (s *Store) conditionalMiss(ctx context.Context, userID, contestID string, conflict error) error {
	if _, err := s.GetParticipation(ctx, userID, contestID); err != nil {
		return err
	}
	return conflict
}

func (s *Store) DeleteParticipation(ctx context.Context, userID, contestID string) error {
	res, err := s.db.NewDelete().Model((*participationRow)(nil)).
		Where("user_id = ?", userID).
		Where("contest_id = ?", contestID).
		Where("started_at IS NULL").
		Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrNotRegistered)
	}
	if affected(res) == 0 {
		return s.conditionalMiss(ctx, userID, contestID, domain.ErrAlreadyStarted)
	}
	return nil
}

func (s *Store) MarkStarted(ctx context.Context, userID, contestID string, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*participationRow)(nil)).
		Set("started_at = ?", at).
		Where("user_id = ?", userID).
		Where("contest_id = ?", contestID).
		Where("started_at IS NULL").
		Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrNotRegistered)
	}
	if affected(res) == 0 {
		return s.conditionalMiss(ctx, userID, contestID, domain.ErrAlreadyStarted)
	}
	return nil
}

func (s *Store) MarkSubmitted(ctx context.Context, userID, contestID string, score int, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*participationRow)(nil)).
		Set("submitted = TRUE").
		Set("result = ?", score).
		Set("submitted_at = ?", at).
		Where("user_id = ?", userID).
		Where("contest_id = ?", contestID).
		Where("submitted = FALSE").
		Exec(ctx)
	if err != nil {
		return notFound(err, domain.ErrNotRegistered)
	}
	if affected(res) == 0 {
		return s.conditionalMiss(ctx, userID, contestID, domain.ErrAlreadySubmitted)
	}
	return nil
}

func (s *Store) ListRegistrations(ctx context.Context, contestID string) ([]domain.Registration, error) {
	var rows []participationRow
	err := s.db.NewSelect().Model(&rows).
		Where("contest_id = ?", contestID).
		Order("registered_at ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, domain.ErrContestNotFound)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	users, err := s.UsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Registration, 0, len(rows))
	for _, r := range rows {
		u := users[r.UserID]
		out = append(out, domain.Registration{Participation: r.toDomain(), Username: u.Username, FullName: u.FullName})
	}
	return out, nil
}

func (s *Store) ListSubmitted(ctx context.Context, contestID string) ([]domain.Participation, error) {
	var rows []participationRow
	err := s.db.NewSelect().Model(&rows).
		Where("contest_id = ?", contestID).
		Where("submitted = TRUE").
		Order("result DESC", "submitted_at ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, domain.ErrContestNotFound)
	}
	out := make([]domain.Participation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListParticipationsByUser(ctx context.Context, userID string) ([]domain.Participation, error) {
	var rows []participationRow
	if err := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Scan(ctx); err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	out := make([]domain.Participation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// choices

func (s *Store) UpsertChoice(ctx context.Context, choice domain.Choice) error {
	row := &choiceRow{
		UserID:     choice.UserID,
		ContestID:  choice.ContestID,
		QuestionID: choice.QuestionID,
		AnswerID:   choice.AnswerID,
		UpdatedAt:  choice.UpdatedAt,
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (user_id, contest_id, question_id) DO UPDATE").
		Set("answer_id = EXCLUDED.answer_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if sqlState(err) == codeForeignKeyViolation {
		return domain.ErrNotRegistered
	}
	return err
}

func (s *Store) ListChoices(ctx context.Context, userID, contestID string) ([]domain.Choice, error) {
	var rows []choiceRow
	err := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Where("contest_id = ?", contestID).
		Order("question_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, domain.ErrNotRegistered)
	}
	out := make([]domain.Choice, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
