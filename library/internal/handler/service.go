package handler

import (
	"context"

	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	// loans
	Borrow(ctx context.Context, req model.BorrowRequest) (model.Loan, error)
	BulkBorrow(ctx context.Context, req model.BulkBorrowRequest) (model.Loan, error)
	Return(ctx context.Context, lineID int) (model.LoanLine, error)
	BulkReturn(ctx context.Context, req model.BulkReturnRequest) ([]model.LoanLine, error)
	MarkFinePaid(ctx context.Context, lineID int, paid bool) (model.LoanLine, error)
	DeleteLoan(ctx context.Context, loanID int) error
	DeleteLine(ctx context.Context, lineID int) error
	ListLoans(ctx context.Context) ([]model.Loan, error)
	GetLoan(ctx context.Context, loanID int) (model.Loan, error)
	UserLines(ctx context.Context, userID int, statuses ...model.LineStatus) ([]model.LoanLine, error)

	// catalog
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id int) (model.Category, error)
	CreateCategory(ctx context.Context, req model.CategoryRequest) (model.Category, error)
	UpdateCategory(ctx context.Context, id int, req model.CategoryRequest) (model.Category, error)
	DeleteCategory(ctx context.Context, id int) error
	ListTitles(ctx context.Context, req model.ListTitlesRequest) (model.ListTitles, error)
	GetTitle(ctx context.Context, id int) (model.Title, error)
	CreateTitle(ctx context.Context, req model.CreateTitleRequest) (model.Title, error)
	UpdateTitle(ctx context.Context, id int, patch model.TitlePatch) (model.Title, error)
	DeleteTitle(ctx context.Context, id int) error
	CountTitles(ctx context.Context) (int, error)
	HighBorrowTitles(ctx context.Context, threshold int) ([]model.Title, error)

	// users
	Register(ctx context.Context, req model.UserCreateRequest) (model.User, error)
	Authorize(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error)
	Me(ctx context.Context) (model.User, error)
	UpdateMe(ctx context.Context, patch model.UserPatch) (model.User, error)
	ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error
	LockUser(ctx context.Context, id int) error
	CountStaff(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id int) error

	// social
	ToggleLike(ctx context.Context, titleID int) (bool, error)
	ListComments(ctx context.Context, titleID int) ([]model.Comment, error)
	CreateComment(ctx context.Context, titleID int, req model.CommentRequest) (model.Comment, error)
	Share(ctx context.Context, titleID int, req model.ShareRequest) (model.Share, error)

	// stats
	MostBorrowed(ctx context.Context, limit int) ([]model.TitleBorrowStat, error)
	Summary(ctx context.Context) (model.Summary, error)
}

var _ LibraryService = (*service.Service)(nil)
