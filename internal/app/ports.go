package app

import (
	"context"
	"time"

	"contest-service/internal/domain"
)

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	// UpdateUser fails with domain.ErrUsernameTaken when the new name belongs to another account.
	UpdateUser(ctx context.Context, user domain.User) error
	// DeleteUser removes the account with its participations and choices.
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, q domain.ListQuery) ([]domain.User, int, error)
	UsersByID(ctx context.Context, ids []string) (map[string]domain.User, error)
}

// CategoryRepository stores question categories.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category domain.Category) error
	UpdateCategory(ctx context.Context, category domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	ListCategories(ctx context.Context, q domain.ListQuery) ([]domain.Category, int, error)
}

// QuestionRepository stores questions together with their answers.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, question domain.Question) error
	// UpdateQuestion replaces the question row and, when answers are given, its answers.
	UpdateQuestion(ctx context.Context, question domain.Question) error
	// DeleteQuestion removes the question, its answers and its contest links.
	DeleteQuestion(ctx context.Context, id string) error
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListQuestions(ctx context.Context, categoryID string, q domain.ListQuery) ([]domain.Question, int, error)
	QuestionIDsByCategory(ctx context.Context, categoryID string) ([]string, error)
	QuestionsExist(ctx context.Context, ids []string) (bool, error)
}

// ContestFilter narrows ListContests.
type ContestFilter struct {
	Status      domain.ContestStatus
	StartsAfter time.Time
}

// ContestRepository stores contests.
type ContestRepository interface {
	CreateContest(ctx context.Context, contest domain.Contest) error
	UpdateContest(ctx context.Context, contest domain.Contest) error
	// DeleteContest removes the contest with its links, participations and choices.
	DeleteContest(ctx context.Context, id string) error
	GetContest(ctx context.Context, id string) (domain.Contest, error)
	ContestsByID(ctx context.Context, ids []string) (map[string]domain.Contest, error)
	ListContests(ctx context.Context, filter ContestFilter, q domain.ListQuery) ([]domain.Contest, int, error)
	// AdvanceStatuses moves Created contests whose start passed to In Progress and
	// In Progress contests whose end passed to Finished, as two batch updates.
	AdvanceStatuses(ctx context.Context, now time.Time) (started, finished int, err error)
}

// LinkRepository stores the contest <-> question association.
type LinkRepository interface {
	// LinkQuestions links ids to the contest, skipping existing links. Returns the number added.
	LinkQuestions(ctx context.Context, contestID string, questionIDs []string) (int, error)
	UnlinkQuestion(ctx context.Context, contestID, questionID string) error
	UnlinkAll(ctx context.Context, contestID string) (int, error)
}

// ParticipationRepository stores per (user, contest) state. The conditional
// writes are atomic in every implementation.
type ParticipationRepository interface {
	// CreateParticipation fails with domain.ErrAlreadyRegistered on a duplicate pair.
	CreateParticipation(ctx context.Context, p domain.Participation) error
	GetParticipation(ctx context.Context, userID, contestID string) (domain.Participation, error)
	// DeleteParticipation deletes only rows without a start stamp.
	DeleteParticipation(ctx context.Context, userID, contestID string) error
	// MarkStarted sets started_at only where it is still null.
	MarkStarted(ctx context.Context, userID, contestID string, at time.Time) error
	// MarkSubmitted sets submitted=true and the result only where submitted=false.
	MarkSubmitted(ctx context.Context, userID, contestID string, score int, at time.Time) error
	ListRegistrations(ctx context.Context, contestID string) ([]domain.Registration, error)
	ListSubmitted(ctx context.Context, contestID string) ([]domain.Participation, error)
	ListParticipationsByUser(ctx context.Context, userID string) ([]domain.Participation, error)
}

// ChoiceRepository stores selected answers.
type ChoiceRepository interface {
	// UpsertChoice creates or overwrites the (user, contest, question) choice.
	UpsertChoice(ctx context.Context, choice domain.Choice) error
	ListChoices(ctx context.Context, userID, contestID string) ([]domain.Choice, error)
}

// Store is the entity storage the use cases run on.
type Store interface {
	UserRepository
	CategoryRepository
	QuestionRepository
	ContestRepository
	LinkRepository
	ParticipationRepository
	ChoiceRepository
}

// PaperLoader fetches a contest's linked questions from a backing store.
type PaperLoader interface {
	LoadPaper(ctx context.Context, contestID string) (domain.Paper, error)
}

// PaperRepository serves contest papers, usually from a cache in front of a PaperLoader.
type PaperRepository interface {
	GetPaper(ctx context.Context, contestID string) (domain.Paper, error)
	Invalidate(ctx context.Context, contestID string)
	InvalidateAll(ctx context.Context)
}

// HubRepository tracks live leaderboard subscribers per contest.
type HubRepository interface {
	// Subscribe attaches a subscriber primed with initial, creating the contest's
	// hub on first use. Attach and the cancel's detach-and-drop share the registry
	// lock, so a subscriber never lands on a dropped hub. Cancel is idempotent.
	Subscribe(contestID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func())
	// Watched reports whether the contest has live subscribers.
	Watched(contestID string) bool
	// Publish delivers lb to the contest's subscribers, if any.
	Publish(contestID string, lb domain.Leaderboard)
}
