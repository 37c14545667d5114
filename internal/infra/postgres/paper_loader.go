package postgres

import (
	"context"
	"errors"
	"fmt"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PaperLoader reads a contest's linked questions and answers in one query.
type PaperLoader struct {
	pool *pgxpool.Pool
}

var _ app.PaperLoader = (*PaperLoader)(nil)

func NewPaperLoader(pool *pgxpool.Pool) *PaperLoader {
	return &PaperLoader{pool: pool}
}

const paperQuery = `
SELECT q.id::text, q.content, q.description, COALESCE(q.category_id::text, ''),
       q.created_at, q.updated_at,
       a.id::text, a.content, a.description, a.is_correct
FROM contest_questions cq
JOIN questions q ON q.id = cq.question_id
LEFT JOIN answers a ON a.question_id = q.id
WHERE cq.contest_id = $1
ORDER BY cq.seq, a.position`

func (l *PaperLoader) LoadPaper(ctx context.Context, contestID string) (domain.Paper, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contests WHERE id = $1)`, contestID).Scan(&exists)
	if err != nil {
		if isInvalidText(err) {
			return domain.Paper{}, domain.ErrContestNotFound
		}
		return domain.Paper{}, fmt.Errorf("load paper: %w", err)
	}
	if !exists {
		return domain.Paper{}, domain.ErrContestNotFound
	}

	rows, err := l.pool.Query(ctx, paperQuery, contestID)
	if err != nil {
		return domain.Paper{}, fmt.Errorf("load paper: %w", err)
	}
	defer rows.Close()

	paper := domain.Paper{ContestID: contestID, Questions: []domain.Question{}}
	index := make(map[string]int)
	for rows.Next() {
		var (
			q                              domain.Question
			answerID, content, description *string
			correct                        *bool
		)
		if err := rows.Scan(&q.ID, &q.Content, &q.Description, &q.CategoryID, &q.CreatedAt, &q.UpdatedAt,
			&answerID, &content, &description, &correct); err != nil {
			return domain.Paper{}, fmt.Errorf("scan paper row: %w", err)
		}
		i, ok := index[q.ID]
		if !ok {
			q.Answers = []domain.Answer{}
			paper.Questions = append(paper.Questions, q)
			i = len(paper.Questions) - 1
			index[q.ID] = i
		}
		if answerID == nil {
			continue
		}
		paper.Questions[i].Answers = append(paper.Questions[i].Answers, domain.Answer{
			ID:          *answerID,
			QuestionID:  q.ID,
			Content:     deref(content),
			Description: deref(description),
			Correct:     correct != nil && *correct,
		})
	}
	if err := rows.Err(); err != nil {
		return domain.Paper{}, fmt.Errorf("read paper rows: %w", err)
	}
	return paper, nil
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeInvalidText
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
