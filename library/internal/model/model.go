package model

import (
	"strings"
	"time"
)

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListTitles struct {
	Paging `json:",inline"`
	Items  []Title `json:"items"`
}

type Category struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type Title struct {
	ID               int       `json:"id" db:"id"`
	CategoryID       *int      `json:"categoryId" db:"category_id"`
	CategoryName     *string   `json:"categoryName,omitempty" db:"category_name"`
	Name             string    `json:"name" db:"name"`
	Author           string    `json:"author" db:"author"`
	Description      string    `json:"description" db:"description"`
	TotalCopies      int       `json:"totalCopies" db:"total_copies"`
	CopiesOnLoan     int       `json:"copiesOnLoan" db:"copies_on_loan"`
	TotalBorrowCount int       `json:"totalBorrowCount" db:"total_borrow_count"`
	IsActive         bool      `json:"isActive" db:"is_active"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

func (t Title) Available() int {
	return t.TotalCopies - t.CopiesOnLoan
}

type CreateTitleRequest struct {
	CategoryID  *int   `json:"categoryId"`
	Name        string `json:"name" validate:"required,max=255"`
	Author      string `json:"author" validate:"required,max=255"`
	Description string `json:"description"`
	TotalCopies int    `json:"totalCopies" validate:"gte=0"`
}

// TitlePatch lists every title field a caller may change. Counters are not here on purpose.
type TitlePatch struct {
	CategoryID  *int    `json:"categoryId"`
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	TotalCopies *int    `json:"totalCopies" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"isActive"`
}

func (p TitlePatch) Empty() bool {
	return p.CategoryID == nil && p.Name == nil && p.Author == nil &&
		p.Description == nil && p.TotalCopies == nil && p.IsActive == nil
}

type ListTitlesRequest struct {
	CategoryID int
	Page       int
	Size       int
}

type User struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	IsStaff      bool      `json:"isStaff" db:"is_staff"`
	IsSuperuser  bool      `json:"isSuperuser" db:"is_superuser"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type UserCreateRequest struct {
	Username    string `json:"username" validate:"required,max=80"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	IsStaff     bool   `json:"isStaff"`
	IsSuperuser bool   `json:"isSuperuser"`
}

// UserPatch lists the profile fields a user may change on themselves.
type UserPatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone"`
}

func (p UserPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Phone == nil
}

type AuthRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type Like struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"userId" db:"user_id"`
	TitleID   int       `json:"titleId" db:"title_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ToggleLikeResponse struct {
	Liked bool `json:"liked"`
}

type Comment struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"userId" db:"user_id"`
	Username  string    `json:"username" db:"username"`
	TitleID   int       `json:"titleId" db:"title_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type CommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type Share struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"userId" db:"user_id"`
	TitleID   int       `json:"titleId" db:"title_id"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ShareRequest struct {
	Message string `json:"message" validate:"max=2000"`
}

type Count struct {
	Count int `json:"count"`
}

type Date struct {
	time.Time `json:",inline"`
}

func (d *Date) UnmarshalJSON(b []byte) (err error) {
	s := strings.Trim(string(b), "\"")
	if s == "" || s == "null" {
		return nil
	}
	date, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return err
	}
	d.Time = date
	return
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}
