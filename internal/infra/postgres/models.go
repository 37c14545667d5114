package postgres

import (
	"time"

	"contest-service/internal/domain"
	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk,type:uuid"`
	Username  string    `bun:"username,notnull"`
	FullName  string    `bun:"full_name,notnull"`
	Role      string    `bun:"role,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:        r.ID,
		Username:  r.Username,
		FullName:  r.FullName,
		Role:      domain.Role(r.Role),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func userFromDomain(u domain.User) *userRow {
	return &userRow{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type categoryRow struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`

	ID          string    `bun:"id,pk,type:uuid"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r categoryRow) toDomain() domain.Category {
	return domain.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func categoryFromDomain(c domain.Category) *categoryRow {
	return &categoryRow{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID          string       `bun:"id,pk,type:uuid"`
	Content     string       `bun:"content,notnull"`
	Description string       `bun:"description,notnull"`
	CategoryID  string       `bun:"category_id,type:uuid,nullzero"`
	CreatedAt   time.Time    `bun:"created_at,notnull"`
	UpdatedAt   time.Time    `bun:"updated_at,notnull"`
	Answers     []*answerRow `bun:"rel:has-many,join:id=question_id"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID          string `bun:"id,pk,type:uuid"`
	QuestionID  string `bun:"question_id,type:uuid,notnull"`
	Position    int    `bun:"position,notnull"`
	Content     string `bun:"content,notnull"`
	Description string `bun:"description,notnull"`
	IsCorrect   bool   `bun:"is_correct,notnull"`
}

func (r questionRow) toDomain() domain.Question {
	q := domain.Question{
		ID:          r.ID,
		Content:     r.Content,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Answers:     make([]domain.Answer, 0, len(r.Answers)),
	}
	for _, a := range r.Answers {
		q.Answers = append(q.Answers, domain.Answer{
			ID:          a.ID,
			QuestionID:  a.QuestionID,
			Content:     a.Content,
			Description: a.Description,
			Correct:     a.IsCorrect,
		})
	}
	return q
}

func questionFromDomain(q domain.Question) (*questionRow, []*answerRow) {
	row := &questionRow{
		ID:          q.ID,
		Content:     q.Content,
		Description: q.Description,
		CategoryID:  q.CategoryID,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
	answers := make([]*answerRow, 0, len(q.Answers))
	for i, a := range q.Answers {
		answers = append(answers, &answerRow{
			ID:          a.ID,
			QuestionID:  q.ID,
			Position:    i,
			Content:     a.Content,
			Description: a.Description,
			IsCorrect:   a.Correct,
		})
	}
	return row, answers
}

type contestRow struct {
	bun.BaseModel `bun:"table:contests,alias:c"`

	ID          string    `bun:"id,pk,type:uuid"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description,notnull"`
	StartTime   time.Time `bun:"start_time,notnull"`
	EndTime     time.Time `bun:"end_time,notnull"`
	Duration    int       `bun:"duration,notnull"`
	Status      string    `bun:"status,notnull"`
	CreatedBy   string    `bun:"created_by,type:uuid,nullzero"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r contestRow) toDomain() domain.Contest {
	return domain.Contest{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMinutes: r.Duration,
		Status:          domain.ContestStatus(r.Status),
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func contestFromDomain(c domain.Contest) *contestRow {
	return &contestRow{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		Duration:    c.DurationMinutes,
		Status:      string(c.Status),
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type linkRow struct {
	bun.BaseModel `bun:"table:contest_questions,alias:cq"`

	ContestID  string    `bun:"contest_id,pk,type:uuid"`
	QuestionID string    `bun:"question_id,pk,type:uuid"`
	Seq        int64     `bun:"seq,scanonly"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

type participationRow struct {
	bun.BaseModel `bun:"table:participations,alias:p"`

	UserID       string     `bun:"user_id,pk,type:uuid"`
	ContestID    string     `bun:"contest_id,pk,type:uuid"`
	RegisteredAt time.Time  `bun:"registered_at,notnull"`
	StartedAt    *time.Time `bun:"started_at"`
	Submitted    bool       `bun:"submitted,notnull"`
	Result       int        `bun:"result,notnull"`
	SubmittedAt  *time.Time `bun:"submitted_at"`
}

func (r participationRow) toDomain() domain.Participation {
	return domain.Participation{
		UserID:       r.UserID,
		ContestID:    r.ContestID,
		RegisteredAt: r.RegisteredAt,
		StartedAt:    r.StartedAt,
		Submitted:    r.Submitted,
		Result:       r.Result,
		SubmittedAt:  r.SubmittedAt,
	}
}

type choiceRow struct {
	bun.BaseModel `bun:"table:choices,alias:ch"`

	UserID     string    `bun:"user_id,pk,type:uuid"`
	ContestID  string    `bun:"contest_id,pk,type:uuid"`
	QuestionID string    `bun:"question_id,pk,type:uuid"`
	AnswerID   string    `bun:"answer_id,type:uuid,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (r choiceRow) toDomain() domain.Choice {
	return domain.Choice{
		UserID:     r.UserID,
		ContestID:  r.ContestID,
		QuestionID: r.QuestionID,
		AnswerID:   r.AnswerID,
		UpdatedAt:  r.UpdatedAt,
	}
}
