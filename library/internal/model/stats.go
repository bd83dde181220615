package model

type TitleBorrowStat struct {
	ID               int    `json:"id" db:"id"`
	Name             string `json:"name" db:"name"`
	Author           string `json:"author" db:"author"`
	TotalBorrowCount int    `json:"totalBorrowCount" db:"total_borrow_count"`
	CopiesOnLoan     int    `json:"copiesOnLoan" db:"copies_on_loan"`
}

type StatusCount struct {
	Status LineStatus `json:"status" db:"status"`
	Count  int        `json:"count" db:"count"`
}

type Summary struct {
	Titles       int                `json:"titles"`
	Readers      int                `json:"readers"`
	CopiesOnLoan int                `json:"copiesOnLoan"`
	Lines        map[LineStatus]int `json:"lines"`
}
