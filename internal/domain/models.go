package domain

import "time"

// Role distinguishes administrators from contestants.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an account known to the platform.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullname"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_date"`
	UpdatedAt time.Time `json:"last_update"`
}

// IsAdmin reports whether the user may manage the catalog.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Category groups questions.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_date"`
	UpdatedAt   time.Time `json:"last_update"`
}

// Answer is one option of a question.
type Answer struct {
	ID          string `json:"id"`
	QuestionID  string `json:"question"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	Correct     bool   `json:"is_correct"`
}

// MaxAnswers bounds the options a question may carry.
const MaxAnswers = 4

// Question models a multiple choice question with 1..MaxAnswers answers.
type Question struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Description string    `json:"description,omitempty"`
	CategoryID  string    `json:"category,omitempty"`
	Answers     []Answer  `json:"answers"`
	CreatedAt   time.Time `json:"created_date"`
	UpdatedAt   time.Time `json:"last_update"`
}

// Validate checks the answer count invariant.
func (q Question) Validate() error {
	if q.Content == "" {
		return Invalidf("question content is required")
	}
	if len(q.Answers) == 0 {
		return Invalidf("question needs at least one answer")
	}
	if len(q.Answers) > MaxAnswers {
		return Invalidf("question accepts at most 4 answers")
	}
	return nil
}

// CorrectAnswerID returns the first answer flagged correct.
func (q Question) CorrectAnswerID() (string, bool) {
	for _, a := range q.Answers {
		if a.Correct {
			return a.ID, true
		}
	}
	return "", false
}

// HasAnswer reports whether answerID belongs to the question.
func (q Question) HasAnswer(answerID string) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

// Paper is the full question set linked to a contest, answers included.
type Paper struct {
	ContestID string     `json:"contest_id"`
	Questions []Question `json:"questions"`
}

// AnswerKey maps question id to the id of its correct answer. Questions
// without a correct answer are absent.
func (p Paper) AnswerKey() map[string]string {
	key := make(map[string]string, len(p.Questions))
	for _, q := range p.Questions {
		if id, ok := q.CorrectAnswerID(); ok {
			key[q.ID] = id
		}
	}
	return key
}

// Question looks up a question of the paper by id.
func (p Paper) Question(id string) (Question, bool) {
	for _, q := range p.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Participation is the per (user, contest) state: registered, entered, submitted.
type Participation struct {
	UserID       string     `json:"user"`
	ContestID    string     `json:"contest"`
	RegisteredAt time.Time  `json:"created_date"`
	StartedAt    *time.Time `json:"start_time,omitempty"`
	Submitted    bool       `json:"is_submitted"`
	Result       int        `json:"result"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
}

// Started reports whether the user entered the contest.
func (p Participation) Started() bool {
	return p.StartedAt != nil
}

// Choice is the answer a user selected for one question of a contest.
type Choice struct {
	UserID     string    `json:"user"`
	ContestID  string    `json:"contest"`
	QuestionID string    `json:"question"`
	AnswerID   string    `json:"select_id"`
	UpdatedAt  time.Time `json:"last_update"`
}

// Registration is a participation joined with the user's display data.
type Registration struct {
	Participation
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

// ExamAnswer is an answer as presented to a contestant; correctness is hidden.
type ExamAnswer struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// ExamQuestion is a question as presented to a contestant.
type ExamQuestion struct {
	ID               string       `json:"id"`
	Content          string       `json:"content"`
	Description      string       `json:"description,omitempty"`
	Answers          []ExamAnswer `json:"answers"`
	SelectedAnswerID string       `json:"selected_answer,omitempty"`
}

// Exam is what Enter returns: the shuffled paper plus the personal deadline.
type Exam struct {
	ContestID string         `json:"contest_id"`
	StartedAt time.Time      `json:"start_time"`
	Deadline  time.Time      `json:"deadline"`
	Questions []ExamQuestion `json:"questions"`
}

// Result is a contestant's stored score.
type Result struct {
	ContestID   string    `json:"contest_id"`
	UserID      string    `json:"user_id"`
	Score       int       `json:"result"`
	Total       int       `json:"total_questions"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	FullName    string    `json:"fullname"`
	Score       int       `json:"result"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Leaderboard captures the ordered scoreboard for a contest.
type Leaderboard struct {
	ContestID string             `json:"contest_id"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ContestListing is a contest annotated for a particular user.
type ContestListing struct {
	Contest
	Registered bool `json:"is_registered"`
}

// CompletedContest is a contest the user submitted, with the score.
type CompletedContest struct {
	Contest
	Score       int       `json:"result"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ListQuery carries keyword and offset pagination for list operations.
type ListQuery struct {
	Keyword string
	Offset  int
	Limit   int
}

// Page is a slice of a larger result set.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Size   int `json:"size"`
	Page   int `json:"page"`
	Offset int `json:"offset"`
}

// NewPage builds a Page from the query that produced it.
func NewPage[T any](items []T, total int, q ListQuery) Page[T] {
	if items == nil {
		items = []T{}
	}
	page := 1
	if q.Limit > 0 {
		page = q.Offset/q.Limit + 1
	}
	return Page[T]{Items: items, Total: total, Size: q.Limit, Page: page, Offset: q.Offset}
}
