package http

import (
	"net/http"

	"contest-service/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterDeps bundles what the REST surface is built from.
type RouterDeps struct {
	Contests  *app.ContestService
	Catalog   *app.CatalogService
	Users     app.UserRepository
	JWTSecret string
	Logger    logrus.FieldLogger
}

// NewRouter wires every route under /api plus /healthz.
func NewRouter(deps RouterDeps) *gin.Engine {
	useJSONFieldNames()
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(requestLogger(log), recoverer())
	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "route not found", nil)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	auth := NewAuthenticator(deps.JWTSecret, deps.Users)
	catalog := NewCatalogHandler(deps.Catalog)
	contests := NewContestHandler(deps.Contests)
	stream := NewLeaderboardStream(deps.Contests)
	admin := RequireAdmin()

	api := r.Group("/api", auth.Require())
	api.GET("/me", catalog.Me)

	users := api.Group("/users")
	{
		users.GET("", admin, catalog.ListUsers)
		users.POST("", admin, catalog.CreateUser)
		users.GET("/:id", admin, catalog.GetUser)
		users.PUT("/:id", catalog.UpdateUser)
		users.DELETE("/:id", admin, catalog.DeleteUser)
	}

	categories := api.Group("/category-questions")
	{
		categories.GET("", catalog.ListCategories)
		categories.GET("/:id", catalog.GetCategory)
		categories.POST("", admin, catalog.CreateCategory)
		categories.PUT("/:id", admin, catalog.UpdateCategory)
		categories.DELETE("/:id", admin, catalog.DeleteCategory)
	}

	questions := api.Group("/questions", admin)
	{
		questions.GET("", catalog.ListQuestions)
		questions.POST("", catalog.CreateQuestion)
		questions.GET("/:id", catalog.GetQuestion)
		questions.PUT("/:id", catalog.UpdateQuestion)
		questions.DELETE("/:id", catalog.DeleteQuestion)
	}

	contest := api.Group("/contest")
	{
		contest.GET("/upcoming", contests.Upcoming)
		contest.GET("/upcoming-registered", contests.UpcomingRegistered)
		contest.GET("/completed", contests.Completed)

		contest.GET("", admin, catalog.ListContests)
		contest.POST("", admin, catalog.CreateContest)
		contest.GET("/:id", catalog.GetContest)
		contest.PUT("/:id", admin, catalog.UpdateContest)
		contest.DELETE("/:id", admin, catalog.DeleteContest)

		contest.GET("/:id/questions", admin, catalog.ContestQuestions)
		contest.POST("/:id/questions", admin, catalog.AddQuestions)
		contest.DELETE("/:id/questions", admin, catalog.RemoveAllQuestions)
		contest.DELETE("/:id/questions/:questionId", admin, catalog.RemoveQuestion)
		contest.POST("/:id/category/:categoryId", admin, catalog.AddCategory)
		contest.GET("/:id/registrations", admin, contests.Registrations)

		contest.POST("/:id/register", contests.Register)
		contest.DELETE("/:id/register", contests.Unregister)
		contest.POST("/:id/enter", contests.Enter)
		contest.GET("/:id/exam", contests.Resume)
		contest.POST("/:id/question/:questionId/answer", contests.Answer)
		contest.POST("/:id/submit", contests.Submit)
		contest.GET("/:id/result", contests.Result)
		contest.GET("/:id/leaderboard", contests.Leaderboard)
		contest.GET("/:id/leaderboard/ws", stream.Serve)
	}
	return r
}
