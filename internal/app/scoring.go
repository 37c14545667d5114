package app

import (
	"math/rand"
	"sort"

	"contest-service/internal/domain"
	"github.com/cespare/xxhash/v2"
)

// Score counts the choices whose answer matches the answer key. Questions
// missing from the key (no correct answer flagged) never score.
func Score(key map[string]string, choices []domain.Choice) int {
	score := 0
	for _, c := range choices {
		if correct, ok := key[c.QuestionID]; ok && correct == c.AnswerID {
			score++
		}
	}
	return score
}

// shuffleAnswers permutes the answers of q for userID. The permutation is
// seeded from the pair so repeated fetches present the same order.
func shuffleAnswers(userID string, q domain.Question) []domain.ExamAnswer {
	answers := make([]domain.ExamAnswer, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = domain.ExamAnswer{ID: a.ID, Content: a.Content}
	}
	seed := xxhash.Sum64String(userID + "/" + q.ID)
	rnd := rand.New(rand.NewSource(int64(seed)))
	rnd.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})
	return answers
}

// buildExamQuestions turns a paper into the contestant's view, attaching prior choices.
func buildExamQuestions(userID string, paper domain.Paper, choices []domain.Choice) []domain.ExamQuestion {
	selected := make(map[string]string, len(choices))
	for _, c := range choices {
		selected[c.QuestionID] = c.AnswerID
	}

	questions := make([]domain.ExamQuestion, 0, len(paper.Questions))
	for _, q := range paper.Questions {
		questions = append(questions, domain.ExamQuestion{
			ID:               q.ID,
			Content:          q.Content,
			Description:      q.Description,
			Answers:          shuffleAnswers(userID, q),
			SelectedAnswerID: selected[q.ID],
		})
	}
	return questions
}

// rankEntries orders submitted participations by score desc, earlier
// submission, then user id, and assigns sequential ranks 1..N.
func rankEntries(parts []domain.Participation, users map[string]domain.User) []domain.LeaderboardEntry {
	sorted := make([]domain.Participation, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Result != b.Result {
			return a.Result > b.Result
		}
		at, bt := submittedAt(a), submittedAt(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.UserID < b.UserID
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, p := range sorted {
		u := users[p.UserID]
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      p.UserID,
			Username:    u.Username,
			FullName:    u.FullName,
			Score:       p.Result,
			SubmittedAt: submittedAt(p),
		})
	}
	return entries
}
