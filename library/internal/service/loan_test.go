package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/pkg/auth"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const finePerDay = 10

var (
	reader = auth.Identity{UserID: 1, Username: "reader"}
	other  = auth.Identity{UserID: 2, Username: "other"}
	staff  = auth.Identity{UserID: 3, Username: "librarian", IsStaff: true}
)

func as(id auth.Identity) context.Context {
	return auth.SetAuthContext(context.Background(), id)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(repo *fakeRepo, now time.Time) (*Service, *recorder) {
	rec := &recorder{}
	svc := NewService(repo, nil, rec, auth.NewIssuer(auth.Config{Secret: "test"}), config.Lending{
		LoanPeriod:          7 * 24 * time.Hour,
		FinePerDay:          finePerDay,
		HighBorrowThreshold: 20,
		MostBorrowedLimit:   10,
	}, zap.NewNop())
	svc.setClock(now)
	return svc, rec
}

func (s *Service) setClock(now time.Time) {
	s.now = func() time.Time { return now }
}

func dueOn(t time.Time) *model.Date {
	return &model.Date{Time: t}
}

func requireLedgerConsistent(t *testing.T, repo *fakeRepo) {
	t.Helper()
	borrowed := repo.borrowedLines()
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for id, title := range repo.state.titles {
		require.GreaterOrEqual(t, title.CopiesOnLoan, 0, "title %d", id)
		require.LessOrEqual(t, title.CopiesOnLoan, title.TotalCopies, "title %d", id)
		require.Equal(t, borrowed[id], title.CopiesOnLoan, "title %d", id)
	}
}

func TestBorrowAndReturnOnTime(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, Name: "Dune", TotalCopies: 2, IsActive: true})
	svc, rec := newTestService(repo, time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC))

	loan, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1, ExpectedReturnDate: dueOn(date(2026, time.March, 5))})
	require.NoError(t, err)
	require.Len(t, loan.Lines, 1)
	require.Equal(t, model.StatusBorrowed, loan.Lines[0].Status)
	require.Equal(t, "Dune", loan.Lines[0].TitleName)

	title := repo.title(1)
	require.Equal(t, 1, title.CopiesOnLoan)
	require.Equal(t, 1, title.TotalBorrowCount)

	svc.setClock(time.Date(2026, time.March, 5, 23, 0, 0, 0, time.UTC))
	line, err := svc.Return(as(reader), loan.Lines[0].ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusReturned, line.Status)
	require.NotNil(t, line.ReturnedAt)
	require.Zero(t, line.FineAmount)

	title = repo.title(1)
	require.Equal(t, 0, title.CopiesOnLoan)
	require.Equal(t, 1, title.TotalBorrowCount)
	require.Equal(t, []kafka.LoanEventType{kafka.EventBorrowed, kafka.EventReturned}, rec.types())
	requireLedgerConsistent(t, repo)
}

func TestLateReturnAndFine(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, Name: "Dune", TotalCopies: 1, IsActive: true})
	svc, rec := newTestService(repo, date(2026, time.March, 1))

	loan, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1, ExpectedReturnDate: dueOn(date(2026, time.March, 1))})
	require.NoError(t, err)
	lineID := loan.Lines[0].ID

	svc.setClock(time.Date(2026, time.March, 4, 8, 30, 0, 0, time.UTC))
	line, err := svc.Return(as(reader), lineID)
	require.NoError(t, err)
	require.Equal(t, model.StatusLate, line.Status)
	require.Equal(t, int64(3*finePerDay), line.FineAmount)
	require.Equal(t, 0, repo.title(1).CopiesOnLoan)

	// a second return is rejected and leaves the ledger alone
	_, err = svc.Return(as(reader), lineID)
	require.ErrorIs(t, err, errs.ErrReturnNotAllowed)
	require.Equal(t, 0, repo.title(1).CopiesOnLoan)

	_, err = svc.MarkFinePaid(context.Background(), lineID, false)
	require.ErrorIs(t, err, errs.ErrFineNotSettled)
	require.Equal(t, model.StatusLate, repo.line(lineID).Status)

	line, err = svc.MarkFinePaid(context.Background(), lineID, true)
	require.NoError(t, err)
	require.Equal(t, model.StatusPaid, line.Status)
	require.True(t, line.FinePaid)

	_, err = svc.MarkFinePaid(context.Background(), lineID, true)
	require.ErrorIs(t, err, errs.ErrInvalidStateTransition)

	require.Equal(t, []kafka.LoanEventType{kafka.EventBorrowed, kafka.EventReturned, kafka.EventFinePaid}, rec.types())
	requireLedgerConsistent(t, repo)
}

func TestBulkBorrowRollsBackOnOutOfStock(t *testing.T) {
	repo := newFakeRepo(
		model.Title{ID: 1, Name: "Dune", TotalCopies: 3, IsActive: true},
		model.Title{ID: 2, Name: "Solaris", TotalCopies: 1, CopiesOnLoan: 1, IsActive: true},
	)
	svc, rec := newTestService(repo, date(2026, time.March, 1))

	_, err := svc.BulkBorrow(as(reader), model.BulkBorrowRequest{TitleIDs: []int{1, 2}})
	require.ErrorIs(t, err, errs.ErrOutOfStock)

	require.Equal(t, 0, repo.title(1).CopiesOnLoan)
	require.Equal(t, 0, repo.title(1).TotalBorrowCount)
	require.Equal(t, 0, repo.countLoans())
	require.Empty(t, rec.types())
}

func TestBulkBorrowReusesLoan(t *testing.T) {
	repo := newFakeRepo(
		model.Title{ID: 1, Name: "Dune", TotalCopies: 3, IsActive: true},
		model.Title{ID: 2, Name: "Solaris", TotalCopies: 3, IsActive: true},
	)
	svc, _ := newTestService(repo, date(2026, time.March, 1))

	first, err := svc.BulkBorrow(as(reader), model.BulkBorrowRequest{TitleIDs: []int{2, 1}})
	require.NoError(t, err)
	require.Len(t, first.Lines, 2)
	require.Equal(t, date(2026, time.March, 8), first.ExpectedReturnDate)

	second, err := svc.BulkBorrow(as(reader), model.BulkBorrowRequest{TitleIDs: []int{1}})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, second.Lines, 3)
	require.Equal(t, 2, repo.title(1).CopiesOnLoan)
	requireLedgerConsistent(t, repo)
}

func TestBulkBorrowEmpty(t *testing.T) {
	svc, _ := newTestService(newFakeRepo(), date(2026, time.March, 1))

	_, err := svc.BulkBorrow(as(reader), model.BulkBorrowRequest{})
	require.ErrorIs(t, err, errs.ErrEmptyBatch)
}

func TestBorrowRejects(t *testing.T) {
	tests := []struct {
		name    string
		title   model.Title
		due     *model.Date
		wantErr error
	}{
		{
			name:    "out of stock",
			title:   model.Title{ID: 1, TotalCopies: 0, IsActive: true},
			wantErr: errs.ErrOutOfStock,
		},
		{
			name:    "inactive",
			title:   model.Title{ID: 1, TotalCopies: 2},
			wantErr: errs.ErrTitleInactive,
		},
		{
			name:    "due in the past",
			title:   model.Title{ID: 1, TotalCopies: 2, IsActive: true},
			due:     dueOn(date(2026, time.February, 28)),
			wantErr: errs.ErrInvalidDueDate,
		},
		{
			name:    "unknown title",
			title:   model.Title{ID: 5, TotalCopies: 2, IsActive: true},
			wantErr: errs.ErrNotFound,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := newFakeRepo(tt.title)
			svc, _ := newTestService(repo, date(2026, time.March, 1))

			_, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1, ExpectedReturnDate: tt.due})
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			require.Equal(t, 0, repo.countLoans())
			requireLedgerConsistent(t, repo)
		})
	}
}

func TestConcurrentBorrowOfLastCopy(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, Name: "Dune", TotalCopies: 1, IsActive: true})
	svc, _ := newTestService(repo, date(2026, time.March, 1))

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		outStock int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			_, err := svc.Borrow(as(auth.Identity{UserID: userID}), model.BorrowRequest{TitleID: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, errs.ErrOutOfStock):
				outStock++
			}
		}(i + 1)
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, workers-1, outStock)
	require.Equal(t, 1, repo.title(1).CopiesOnLoan)
	requireLedgerConsistent(t, repo)
}

func TestReturnOwnership(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, TotalCopies: 2, IsActive: true})
	svc, _ := newTestService(repo, date(2026, time.March, 1))

	loan, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1})
	require.NoError(t, err)
	lineID := loan.Lines[0].ID

	_, err = svc.Return(as(other), lineID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Equal(t, 1, repo.title(1).CopiesOnLoan)

	line, err := svc.Return(as(staff), lineID)
	require.NoError(t, err)
	require.Equal(t, model.StatusReturned, line.Status)
	requireLedgerConsistent(t, repo)
}

func TestBulkReturnIsAtomic(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, TotalCopies: 2, IsActive: true})
	svc, _ := newTestService(repo, date(2026, time.March, 1))

	a, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1})
	require.NoError(t, err)
	b, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1})
	require.NoError(t, err)
	_, err = svc.Return(as(reader), b.Lines[0].ID)
	require.NoError(t, err)

	_, err = svc.BulkReturn(as(reader), model.BulkReturnRequest{LineIDs: []int{a.Lines[0].ID, b.Lines[0].ID}})
	require.ErrorIs(t, err, errs.ErrReturnNotAllowed)
	require.Equal(t, model.StatusBorrowed, repo.line(a.Lines[0].ID).Status)
	require.Equal(t, 1, repo.title(1).CopiesOnLoan)

	lines, err := svc.BulkReturn(as(reader), model.BulkReturnRequest{LineIDs: []int{a.Lines[0].ID}})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 0, repo.title(1).CopiesOnLoan)
	requireLedgerConsistent(t, repo)
}

func TestMarkFinePaidOnBorrowedLine(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, TotalCopies: 1, IsActive: true})
	svc, _ := newTestService(repo, date(2026, time.March, 1))

	loan, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1})
	require.NoError(t, err)

	_, err = svc.MarkFinePaid(context.Background(), loan.Lines[0].ID, true)
	require.ErrorIs(t, err, errs.ErrInvalidStateTransition)
	require.Equal(t, model.StatusBorrowed, repo.line(loan.Lines[0].ID).Status)
}

func TestDeleteReleasesBorrowedCopies(t *testing.T) {
	repo := newFakeRepo(
		model.Title{ID: 1, TotalCopies: 2, IsActive: true},
		model.Title{ID: 2, TotalCopies: 2, IsActive: true},
	)
	svc, _ := newTestService(repo, date(2026, time.March, 1))

	loan, err := svc.BulkBorrow(as(reader), model.BulkBorrowRequest{TitleIDs: []int{1, 2}})
	require.NoError(t, err)
	_, err = svc.Return(as(reader), loan.Lines[1].ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLine(context.Background(), loan.Lines[0].ID))
	require.Equal(t, 0, repo.title(1).CopiesOnLoan)

	require.NoError(t, svc.DeleteLoan(context.Background(), loan.ID))
	require.Equal(t, 0, repo.title(2).CopiesOnLoan)
	require.Equal(t, 0, repo.countLoans())
	require.ErrorIs(t, svc.DeleteLoan(context.Background(), loan.ID), errs.ErrNotFound)
	requireLedgerConsistent(t, repo)
}

func TestGetLoanVisibility(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, TotalCopies: 1, IsActive: true})
	svc, _ := newTestService(repo, date(2026, time.March, 1))

	loan, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1})
	require.NoError(t, err)

	_, err = svc.GetLoan(as(other), loan.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := svc.GetLoan(as(staff), loan.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)

	loans, err := svc.ListLoans(as(reader))
	require.NoError(t, err)
	require.Len(t, loans, 1)

	_, err = svc.UserLines(as(other), reader.UserID)
	require.ErrorIs(t, err, errs.ErrForbidden)

	lines, err := svc.UserLines(as(staff), reader.UserID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestNotifyOverdueKeepsStatus(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, TotalCopies: 2, IsActive: true})
	svc, rec := newTestService(repo, date(2026, time.March, 1))

	overdue, err := svc.Borrow(as(reader), model.BorrowRequest{TitleID: 1, ExpectedReturnDate: dueOn(date(2026, time.March, 2))})
	require.NoError(t, err)
	_, err = svc.Borrow(as(other), model.BorrowRequest{TitleID: 1, ExpectedReturnDate: dueOn(date(2026, time.March, 10))})
	require.NoError(t, err)

	svc.setClock(date(2026, time.March, 3))
	n, err := svc.NotifyOverdue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, model.StatusBorrowed, repo.line(overdue.Lines[0].ID).Status)

	types := rec.types()
	require.Equal(t, kafka.EventOverdue, types[len(types)-1])

	// the regular return still decides lateness
	line, err := svc.Return(as(reader), overdue.Lines[0].ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusLate, line.Status)
	require.Equal(t, int64(finePerDay), line.FineAmount)
}

func TestUpdateTitleKeepsInvariant(t *testing.T) {
	repo := newFakeRepo(model.Title{ID: 1, Name: "Dune", TotalCopies: 3, CopiesOnLoan: 2, IsActive: true})
	svc, _ := newTestService(repo, date(2026, time.March, 1))

	one := 1
	_, err := svc.UpdateTitle(context.Background(), 1, model.TitlePatch{TotalCopies: &one})
	require.ErrorIs(t, err, errs.ErrInvariantViolation)
	require.Equal(t, 3, repo.title(1).TotalCopies)

	_, err = svc.UpdateTitle(context.Background(), 1, model.TitlePatch{})
	require.ErrorIs(t, err, errs.ErrEmptyPatch)

	two, name := 2, "Dune Messiah"
	title, err := svc.UpdateTitle(context.Background(), 1, model.TitlePatch{TotalCopies: &two, Name: &name})
	require.NoError(t, err)
	require.Equal(t, 2, title.TotalCopies)
	require.Equal(t, "Dune Messiah", title.Name)
	require.Equal(t, 2, title.CopiesOnLoan)
}
