package handler

import (
	"net/http"

	md "github.com/Astemirdum/lending-service/pkg/middleware"
	"github.com/Astemirdum/lending-service/pkg/validate"
	_ "github.com/Astemirdum/lending-service/swagger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

type Handler struct {
	librarySvc LibraryService
	tokens     md.TokenParser
	log        *zap.Logger
}

func New(librarySvc LibraryService, tokens md.TokenParser, log *zap.Logger) *Handler {
	return &Handler{
		librarySvc: librarySvc,
		tokens:     tokens,
		log:        log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, md.AuthorizationHeader},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	// public
	api.POST("/auth/register", h.Register, md.OptionalJwtAuthentication(h.tokens))
	api.POST("/auth/token", h.Authorize)
	api.GET("/categories", h.ListCategories)
	api.GET("/categories/:id", h.GetCategory)
	api.GET("/titles", h.ListTitles)
	api.GET("/titles/count", h.CountTitles)
	api.GET("/titles/high-borrow", h.HighBorrowTitles)
	api.GET("/titles/:id", h.GetTitle)
	api.GET("/comments", h.ListComments)

	user := api.Group("", md.JwtAuthentication(h.tokens))
	user.GET("/me", h.Me)
	user.PATCH("/me", h.UpdateMe)
	user.POST("/me/password", h.ChangePassword)
	user.GET("/users/:id/lines", h.UserLines)

	user.GET("/loans", h.ListLoans)
	user.GET("/loans/:id", h.GetLoan)
	user.POST("/loans", h.Borrow)
	user.POST("/loans/bulk", h.BulkBorrow)
	user.POST("/lines/return", h.BulkReturn)
	user.POST("/lines/:id/return", h.Return)

	user.POST("/titles/:id/like", h.ToggleLike)
	user.POST("/titles/:id/comments", h.CreateComment)
	user.POST("/titles/:id/share", h.Share)

	staff := user.Group("", md.RequireStaff)
	staff.POST("/categories", h.CreateCategory)
	staff.PATCH("/categories/:id", h.UpdateCategory)
	staff.DELETE("/categories/:id", h.DeleteCategory)
	staff.POST("/titles", h.CreateTitle)
	staff.PATCH("/titles/:id", h.UpdateTitle)
	staff.DELETE("/titles/:id", h.DeleteTitle)

	staff.POST("/lines/:id/fine", h.MarkFinePaid)
	staff.DELETE("/lines/:id", h.DeleteLine)
	staff.DELETE("/loans/:id", h.DeleteLoan)

	staff.GET("/users/staff/count", h.CountStaff)
	staff.POST("/users/:id/lock", h.LockUser)
	staff.GET("/stats/most-borrowed", h.MostBorrowed)
	staff.GET("/stats/summary", h.Summary)

	user.DELETE("/users/:id", h.DeleteUser, md.RequireSuperuser)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}
