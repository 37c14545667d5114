package cli

import (
	"context"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	transport "contest-service/internal/transport/http"
	"github.com/sirupsen/logrus"
)

// seedDemo fills an empty in-memory catalog with two accounts and a contest
// that opens for registration right away. Tokens are logged so the API can be
// tried without a Postgres-backed `user create`.
func seedDemo(ctx context.Context, catalog *app.CatalogService, secret string, log logrus.FieldLogger) error {
	admin, err := catalog.CreateUser(ctx, app.UserInput{Username: "admin", FullName: "Demo Admin", Role: domain.RoleAdmin})
	if err != nil {
		return err
	}
	player, err := catalog.CreateUser(ctx, app.UserInput{Username: "player", FullName: "Demo Player"})
	if err != nil {
		return err
	}

	category, err := catalog.CreateCategory(ctx, app.CategoryInput{Name: "General", Description: "Warm-up questions"})
	if err != nil {
		return err
	}
	for _, q := range demoQuestions(category.ID) {
		if _, err := catalog.CreateQuestion(ctx, q); err != nil {
			return err
		}
	}

	start := time.Now().Add(30 * time.Minute).Truncate(time.Minute)
	contest, err := catalog.CreateContest(ctx, admin.ID, app.ContestInput{
		Name:            "Demo contest",
		Description:     "Three general knowledge questions",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 15,
	})
	if err != nil {
		return err
	}
	if _, err := catalog.AddCategory(ctx, contest.ID, category.ID); err != nil {
		return err
	}

	for _, u := range []domain.User{admin, player} {
		token, err := transport.IssueToken(secret, u, 24*time.Hour)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"user": u.Username, "role": u.Role, "token": token}).Info("demo account")
	}
	log.WithFields(logrus.Fields{"contest": contest.ID, "start": contest.StartTime}).Info("demo contest seeded")
	return nil
}

func demoQuestions(categoryID string) []app.QuestionInput {
	return []app.QuestionInput{
		{
			Content:    "What is 2 + 2?",
			CategoryID: categoryID,
			Answers: []app.AnswerInput{
				{Content: "3"},
				{Content: "4", Correct: true},
				{Content: "5"},
			},
		},
		{
			Content:    "Which planet is closest to the sun?",
			CategoryID: categoryID,
			Answers: []app.AnswerInput{
				{Content: "Mercury", Correct: true},
				{Content: "Venus"},
				{Content: "Mars"},
				{Content: "Earth"},
			},
		},
		{
			Content:    "How many minutes are in an hour?",
			CategoryID: categoryID,
			Answers: []app.AnswerInput{
				{Content: "60", Correct: true},
				{Content: "100"},
			},
		},
	}
}
