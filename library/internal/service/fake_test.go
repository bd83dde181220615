package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	libraryRepo "github.com/Astemirdum/lending-service/library/internal/repository"
	"github.com/Astemirdum/lending-service/pkg/kafka"
)

// fakeRepo keeps everything in memory. InTx is serializable and restores the previous state on error.
type fakeRepo struct {
	libraryRepo.Repository

	mu    sync.Mutex
	state fakeState
}

type fakeState struct {
	titles   map[int]model.Title
	loans    map[int]model.Loan
	lines    map[int]model.LoanLine
	users    map[int]model.User
	nextLoan int
	nextLine int
	nextUser int
}

func (st fakeState) clone() fakeState {
	c := st
	c.titles = make(map[int]model.Title, len(st.titles))
	for k, v := range st.titles {
		c.titles[k] = v
	}
	c.loans = make(map[int]model.Loan, len(st.loans))
	for k, v := range st.loans {
		c.loans[k] = v
	}
	c.lines = make(map[int]model.LoanLine, len(st.lines))
	for k, v := range st.lines {
		c.lines[k] = v
	}
	c.users = make(map[int]model.User, len(st.users))
	for k, v := range st.users {
		c.users[k] = v
	}
	return c
}

func newFakeRepo(titles ...model.Title) *fakeRepo {
	r := &fakeRepo{state: fakeState{
		titles: make(map[int]model.Title),
		loans:  make(map[int]model.Loan),
		lines:  make(map[int]model.LoanLine),
		users:  make(map[int]model.User),
	}}
	for _, t := range titles {
		r.state.titles[t.ID] = t
	}
	return r
}

func (r *fakeRepo) InTx(_ context.Context, fn func(tx libraryRepo.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	if err := fn(&fakeTx{st: &r.state}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *fakeRepo) title(id int) model.Title {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.titles[id]
}

func (r *fakeRepo) line(id int) model.LoanLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.lines[id]
}

func (r *fakeRepo) countLoans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.loans)
}

// borrowedLines counts lines in borrowed state per title.
func (r *fakeRepo) borrowedLines() map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]int)
	for _, l := range r.state.lines {
		if l.Status == model.StatusBorrowed {
			out[l.TitleID]++
		}
	}
	return out
}

func (r *fakeRepo) GetTitle(_ context.Context, id int) (model.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.state.titles[id]
	if !ok {
		return model.Title{}, errs.ErrNotFound
	}
	return t, nil
}

func (r *fakeRepo) GetLoan(_ context.Context, id int) (model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan, ok := r.state.loans[id]
	if !ok {
		return model.Loan{}, errs.ErrNotFound
	}
	loan.Lines = r.state.linesOf(id)
	return loan, nil
}

func (r *fakeRepo) ListLoans(_ context.Context, borrowerID int) ([]model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loans := make([]model.Loan, 0)
	for _, loan := range r.state.loans {
		if loan.BorrowerID == borrowerID {
			loan.Lines = r.state.linesOf(loan.ID)
			loans = append(loans, loan)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID > loans[j].ID })
	return loans, nil
}

func (r *fakeRepo) ListLines(_ context.Context, borrowerID int, statuses ...model.LineStatus) ([]model.LoanLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.LoanLine, 0)
	for _, l := range r.state.sortedLines() {
		if l.BorrowerID != borrowerID {
			continue
		}
		for _, st := range statuses {
			if l.Status == st {
				out = append(out, l)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) ListOverdue(_ context.Context, day time.Time) ([]model.LoanLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.LoanLine, 0)
	for _, l := range r.state.sortedLines() {
		if l.Status == model.StatusBorrowed && l.ExpectedReturnDate.Before(day) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateUser(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.state.users {
		if u.Username == user.Username {
			return model.User{}, errs.ErrAlreadyExists
		}
	}
	r.state.nextUser++
	user.ID = r.state.nextUser
	user.IsActive = true
	r.state.users[user.ID] = user
	return user, nil
}

func (r *fakeRepo) GetUser(_ context.Context, id int) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.state.users[id]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.state.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, errs.ErrNotFound
}

func (r *fakeRepo) SetPassword(_ context.Context, id int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.state.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.PasswordHash = hash
	r.state.users[id] = u
	return nil
}

func (r *fakeRepo) SetActive(_ context.Context, id int, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.state.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.IsActive = active
	r.state.users[id] = u
	return nil
}

func (st *fakeState) sortedLines() []model.LoanLine {
	lines := make([]model.LoanLine, 0, len(st.lines))
	for _, l := range st.lines {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

func (st *fakeState) linesOf(loanID int) []model.LoanLine {
	out := make([]model.LoanLine, 0)
	for _, l := range st.sortedLines() {
		if l.LoanID == loanID {
			out = append(out, l)
		}
	}
	return out
}

type fakeTx struct {
	st *fakeState
}

func (tx *fakeTx) GetTitleForUpdate(_ context.Context, id int) (model.Title, error) {
	t, ok := tx.st.titles[id]
	if !ok {
		return model.Title{}, errs.ErrNotFound
	}
	return t, nil
}

func (tx *fakeTx) UpdateTitle(_ context.Context, title model.Title) error {
	if _, ok := tx.st.titles[title.ID]; !ok {
		return errs.ErrNotFound
	}
	// mirrors the titles_on_loan_bounds check constraint
	if title.CopiesOnLoan < 0 || title.CopiesOnLoan > title.TotalCopies {
		return errs.ErrInvariantViolation
	}
	tx.st.titles[title.ID] = title
	return nil
}

func (tx *fakeTx) CreateLoan(_ context.Context, borrowerID int, due time.Time) (model.Loan, error) {
	tx.st.nextLoan++
	loan := model.Loan{
		ID:                 tx.st.nextLoan,
		BorrowerID:         borrowerID,
		CreatedAt:          time.Now(),
		ExpectedReturnDate: due,
	}
	tx.st.loans[loan.ID] = loan
	return loan, nil
}

func (tx *fakeTx) GetOrCreateLoan(ctx context.Context, borrowerID int, due time.Time) (model.Loan, error) {
	for id := 1; id <= tx.st.nextLoan; id++ {
		loan, ok := tx.st.loans[id]
		if ok && loan.BorrowerID == borrowerID && loan.ExpectedReturnDate.Equal(due) {
			return loan, nil
		}
	}
	return tx.CreateLoan(ctx, borrowerID, due)
}

func (tx *fakeTx) DeleteLoan(_ context.Context, id int) error {
	if _, ok := tx.st.loans[id]; !ok {
		return errs.ErrNotFound
	}
	delete(tx.st.loans, id)
	for lineID, l := range tx.st.lines {
		if l.LoanID == id {
			delete(tx.st.lines, lineID)
		}
	}
	return nil
}

func (tx *fakeTx) CreateLine(_ context.Context, loan model.Loan, titleID int) (model.LoanLine, error) {
	tx.st.nextLine++
	line := model.LoanLine{
		ID:                 tx.st.nextLine,
		LoanID:             loan.ID,
		TitleID:            titleID,
		Status:             model.StatusBorrowed,
		BorrowerID:         loan.BorrowerID,
		ExpectedReturnDate: loan.ExpectedReturnDate,
	}
	tx.st.lines[line.ID] = line
	return line, nil
}

func (tx *fakeTx) GetLineForUpdate(_ context.Context, id int) (model.LoanLine, error) {
	l, ok := tx.st.lines[id]
	if !ok {
		return model.LoanLine{}, errs.ErrNotFound
	}
	return l, nil
}

func (tx *fakeTx) LinesForUpdate(_ context.Context, loanID int) ([]model.LoanLine, error) {
	return tx.st.linesOf(loanID), nil
}

func (tx *fakeTx) UpdateLine(_ context.Context, line model.LoanLine) error {
	if _, ok := tx.st.lines[line.ID]; !ok {
		return errs.ErrNotFound
	}
	tx.st.lines[line.ID] = line
	return nil
}

func (tx *fakeTx) DeleteLine(_ context.Context, id int) error {
	if _, ok := tx.st.lines[id]; !ok {
		return errs.ErrNotFound
	}
	delete(tx.st.lines, id)
	return nil
}

func (tx *fakeTx) BorrowedLinesForUpdate(_ context.Context, borrowerID int) ([]model.LoanLine, error) {
	out := make([]model.LoanLine, 0)
	for _, l := range tx.st.sortedLines() {
		if l.BorrowerID == borrowerID && l.Status == model.StatusBorrowed {
			out = append(out, l)
		}
	}
	return out, nil
}

// DeleteUser cascades to loans and lines the way the foreign keys do.
func (tx *fakeTx) DeleteUser(_ context.Context, id int) error {
	if _, ok := tx.st.users[id]; !ok {
		return errs.ErrNotFound
	}
	delete(tx.st.users, id)
	for loanID, loan := range tx.st.loans {
		if loan.BorrowerID != id {
			continue
		}
		delete(tx.st.loans, loanID)
		for lineID, l := range tx.st.lines {
			if l.LoanID == loanID {
				delete(tx.st.lines, lineID)
			}
		}
	}
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []kafka.LoanEvent
}

func (r *recorder) Enqueue(_ string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, v.(kafka.LoanEvent))
	return nil
}

func (r *recorder) types() []kafka.LoanEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]kafka.LoanEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
