package http

import (
	"contest-service/internal/app"
	"github.com/gin-gonic/gin"
)

// ContestHandler serves the contestant lifecycle: register, enter, answer, submit, score.
type ContestHandler struct {
	contests *app.ContestService
}

func NewContestHandler(contests *app.ContestService) *ContestHandler {
	return &ContestHandler{contests: contests}
}

type choiceRequest struct {
	AnswerID string `json:"answerId" binding:"required"`
}

func (h *ContestHandler) Register(c *gin.Context) {
	part, err := h.contests.Register(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, "registered", part)
}

func (h *ContestHandler) Unregister(c *gin.Context) {
	if err := h.contests.Unregister(c.Request.Context(), c.Param("id"), currentUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	ok(c, "unregistered", nil)
}

func (h *ContestHandler) Enter(c *gin.Context) {
	exam, err := h.contests.Enter(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "contest entered", exam)
}

func (h *ContestHandler) Resume(c *gin.Context) {
	exam, err := h.contests.Resume(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", exam)
}

func (h *ContestHandler) Answer(c *gin.Context) {
	var req choiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	choice, err := h.contests.Answer(c.Request.Context(), c.Param("id"), c.Param("questionId"), req.AnswerID, currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "answer saved", choice)
}

func (h *ContestHandler) Submit(c *gin.Context) {
	result, err := h.contests.Submit(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "contest submitted", result)
}

func (h *ContestHandler) Result(c *gin.Context) {
	result, err := h.contests.Result(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", result)
}

func (h *ContestHandler) Leaderboard(c *gin.Context) {
	lb, err := h.contests.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", lb)
}

func (h *ContestHandler) Registrations(c *gin.Context) {
	regs, err := h.contests.Registrations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", regs)
}

func (h *ContestHandler) Upcoming(c *gin.Context) {
	q, err := listQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	registeredOnly, err := boolParam(c, "isRegistered")
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.contests.Upcoming(c.Request.Context(), currentUser(c).ID, registeredOnly, q)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", page)
}

// UpcomingRegistered is Upcoming with isRegistered forced on.
func (h *ContestHandler) UpcomingRegistered(c *gin.Context) {
	q, err := listQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.contests.Upcoming(c.Request.Context(), currentUser(c).ID, true, q)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", page)
}

func (h *ContestHandler) Completed(c *gin.Context) {
	items, err := h.contests.Completed(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", items)
}
