package domain

import "errors"

// Error kinds. Every specific error below wraps exactly one of these so callers
// can classify with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Invalidf builds an ErrInvalid-kind error with a custom message.
func Invalidf(msg string) error {
	return newError(ErrInvalid, msg)
}

var (
	// ErrContestNotFound is returned when the referenced contest does not exist.
	ErrContestNotFound = newError(ErrNotFound, "contest not found")
	// ErrQuestionNotFound is returned when a question id is unknown.
	ErrQuestionNotFound = newError(ErrNotFound, "question not found")
	// ErrAnswerNotFound indicates the answer does not belong to the question.
	ErrAnswerNotFound = newError(ErrNotFound, "answer not found")
	// ErrCategoryNotFound indicates a missing category.
	ErrCategoryNotFound = newError(ErrNotFound, "category not found")
	// ErrUserNotFound indicates a missing user.
	ErrUserNotFound = newError(ErrNotFound, "user not found")
	// ErrQuestionNotInContest is returned when the contest-question link is missing.
	ErrQuestionNotInContest = newError(ErrNotFound, "question is not part of this contest")
	// ErrNotRegistered is returned when the user has no participation in the contest.
	ErrNotRegistered = newError(ErrNotFound, "not registered for this contest")

	ErrRegistrationClosed = newError(ErrForbidden, "registration is closed for this contest")
	ErrExamClosed         = newError(ErrForbidden, "contest is not open for entry")
	ErrAnswerClosed       = newError(ErrForbidden, "contest is not accepting answers")
	ErrDeadlinePassed     = newError(ErrForbidden, "submission deadline has passed")
	ErrAlreadyStarted     = newError(ErrForbidden, "contest already started")
	ErrNotStarted         = newError(ErrForbidden, "contest not started")
	ErrAlreadySubmitted   = newError(ErrForbidden, "contest already submitted")
	ErrNotSubmitted       = newError(ErrForbidden, "contest not submitted yet")
	ErrAdminRequired      = newError(ErrForbidden, "you do not have permission")

	// ErrAlreadyRegistered is returned when a participation already exists.
	ErrAlreadyRegistered = newError(ErrConflict, "already registered for this contest")
	// ErrUsernameTaken is returned when creating a user with a duplicate username.
	ErrUsernameTaken = newError(ErrConflict, "username already exists")
)
