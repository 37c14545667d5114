package http

import (
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves users, categories, questions and contest management.
type CatalogHandler struct {
	catalog *app.CatalogService
}

func NewCatalogHandler(catalog *app.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

type userRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	FullName string `json:"fullname" binding:"max=128"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
}

type userPatch struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=64"`
	FullName *string `json:"fullname" binding:"omitempty,max=128"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin user"`
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=128"`
	Description string `json:"description" binding:"max=1024"`
}

type answerRequest struct {
	Content     string `json:"content" binding:"required"`
	Description string `json:"description"`
	IsCorrect   bool   `json:"is_correct"`
}

type questionRequest struct {
	Content     string          `json:"content" binding:"required"`
	Description string          `json:"description"`
	Category    string          `json:"category" binding:"omitempty,uuid"`
	Answers     []answerRequest `json:"answers" binding:"required,min=1,max=4,dive"`
}

type questionPatch struct {
	Content     *string         `json:"content" binding:"omitempty,min=1"`
	Description *string         `json:"description"`
	Category    *string         `json:"category"`
	Answers     []answerRequest `json:"answers" binding:"omitempty,min=1,max=4,dive"`
}

type contestRequest struct {
	Name        string    `json:"name" binding:"required,max=256"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
	Duration    int       `json:"duration" binding:"gte=0"`
}

type contestPatch struct {
	Name        *string    `json:"name" binding:"omitempty,min=1,max=256"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Duration    *int       `json:"duration" binding:"omitempty,gte=0"`
	Status      *string    `json:"status" binding:"omitempty,oneof='Created' 'In Progress' 'Finished' 'Cancelled'"`
}

type linkRequest struct {
	QuestionIDs []string `json:"question_ids" binding:"required,min=1,dive,required"`
}

func toAnswerInputs(in []answerRequest) []app.AnswerInput {
	if in == nil {
		return nil
	}
	out := make([]app.AnswerInput, 0, len(in))
	for _, a := range in {
		out = append(out, app.AnswerInput{Content: a.Content, Description: a.Description, Correct: a.IsCorrect})
	}
	return out
}

// users

func (h *CatalogHandler) Me(c *gin.Context) {
	ok(c, "OK", currentUser(c))
}

func (h *CatalogHandler) CreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	user, err := h.catalog.CreateUser(c.Request.Context(), app.UserInput{
		Username: req.Username,
		FullName: req.FullName,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, "user created", user)
}

func (h *CatalogHandler) GetUser(c *gin.Context) {
	user, err := h.catalog.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", user)
}

func (h *CatalogHandler) ListUsers(c *gin.Context) {
	q, err := listQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.catalog.ListUsers(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", page)
}

// UpdateUser lets an account edit itself; admins may edit anyone and change roles.
func (h *CatalogHandler) UpdateUser(c *gin.Context) {
	var req userPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	me := currentUser(c)
	id := c.Param("id")
	if !me.IsAdmin() && (me.ID != id || req.Role != nil) {
		respondError(c, domain.ErrAdminRequired)
		return
	}
	in := app.UserUpdate{Username: req.Username, FullName: req.FullName}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		in.Role = &role
	}
	user, err := h.catalog.UpdateUser(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "user updated", user)
}

func (h *CatalogHandler) DeleteUser(c *gin.Context) {
	if err := h.catalog.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, "user deleted", nil)
}

// categories

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), app.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, "category created", category)
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	category, err := h.catalog.UpdateCategory(c.Request.Context(), c.Param("id"), app.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "category updated", category)
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, "category deleted", nil)
}

func (h *CatalogHandler) GetCategory(c *gin.Context) {
	category, err := h.catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", category)
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	q, err := listQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.catalog.ListCategories(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", page)
}

// questions

func (h *CatalogHandler) CreateQuestion(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	question, err := h.catalog.CreateQuestion(c.Request.Context(), app.QuestionInput{
		Content:     req.Content,
		Description: req.Description,
		CategoryID:  req.Category,
		Answers:     toAnswerInputs(req.Answers),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, "question created", question)
}

func (h *CatalogHandler) UpdateQuestion(c *gin.Context) {
	var req questionPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	question, err := h.catalog.UpdateQuestion(c.Request.Context(), c.Param("id"), app.QuestionUpdate{
		Content:     req.Content,
		Description: req.Description,
		CategoryID:  req.Category,
		Answers:     toAnswerInputs(req.Answers),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "question updated", question)
}

func (h *CatalogHandler) DeleteQuestion(c *gin.Context) {
	if err := h.catalog.DeleteQuestion(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, "question deleted", nil)
}

func (h *CatalogHandler) GetQuestion(c *gin.Context) {
	question, err := h.catalog.GetQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", question)
}

func (h *CatalogHandler) ListQuestions(c *gin.Context) {
	q, err := listQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.catalog.ListQuestions(c.Request.Context(), c.Query("category"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", page)
}

// contests

func (h *CatalogHandler) CreateContest(c *gin.Context) {
	var req contestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	contest, err := h.catalog.CreateContest(c.Request.Context(), currentUser(c).ID, app.ContestInput{
		Name:            req.Name,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.Duration,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, "contest created", contest)
}

func (h *CatalogHandler) UpdateContest(c *gin.Context) {
	var req contestPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	in := app.ContestUpdate{
		Name:            req.Name,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.Duration,
	}
	if req.Status != nil {
		status := domain.ContestStatus(*req.Status)
		in.Status = &status
	}
	contest, err := h.catalog.UpdateContest(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "contest updated", contest)
}

func (h *CatalogHandler) DeleteContest(c *gin.Context) {
	if err := h.catalog.DeleteContest(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, "contest deleted", nil)
}

func (h *CatalogHandler) GetContest(c *gin.Context) {
	contest, err := h.catalog.GetContest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", contest)
}

func (h *CatalogHandler) ListContests(c *gin.Context) {
	q, err := listQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	status := domain.ContestStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		respondError(c, domain.Invalidf("unknown contest status"))
		return
	}
	page, err := h.catalog.ListContests(c.Request.Context(), status, q)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", page)
}

// contest questions

func (h *CatalogHandler) ContestQuestions(c *gin.Context) {
	questions, err := h.catalog.ContestQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "OK", questions)
}

func (h *CatalogHandler) AddQuestions(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	added, err := h.catalog.AddQuestions(c.Request.Context(), c.Param("id"), req.QuestionIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "questions added", gin.H{"added": added})
}

func (h *CatalogHandler) AddCategory(c *gin.Context) {
	added, err := h.catalog.AddCategory(c.Request.Context(), c.Param("id"), c.Param("categoryId"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "questions added", gin.H{"added": added})
}

func (h *CatalogHandler) RemoveQuestion(c *gin.Context) {
	if err := h.catalog.RemoveQuestion(c.Request.Context(), c.Param("id"), c.Param("questionId")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, "question removed", nil)
}

func (h *CatalogHandler) RemoveAllQuestions(c *gin.Context) {
	removed, err := h.catalog.RemoveAllQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, "questions removed", gin.H{"removed": removed})
}
