package library

import (
	"errors"
	"fmt"
	"time"
)

// Loan is the state of one borrow event: either an ActiveLoan or a ReturnedLoan.
type Loan interface {
	TakenAt() time.Time
	isLoan()
}

// ActiveLoan is a loan whose book is still out.
type ActiveLoan struct {
	Taken time.Time
}

// ReturnedLoan is a loan whose book came back.
type ReturnedLoan struct {
	Taken    time.Time
	Returned time.Time
}

// NewActiveLoan creates an ActiveLoan taken at the given time.
func NewActiveLoan(taken time.Time) ActiveLoan {
	return ActiveLoan{Taken: taken}
}

// NewReturnedLoan creates a ReturnedLoan, rejecting a return before the take.
func NewReturnedLoan(taken, returned time.Time) (ReturnedLoan, error) {
	if returned.Before(taken) {
		return ReturnedLoan{}, errors.Join(
			ErrInvalidEntity,
			fmt.Errorf("return date %s is before take date %s", returned.Format(time.RFC3339), taken.Format(time.RFC3339)),
		)
	}

	return ReturnedLoan{Taken: taken, Returned: returned}, nil
}

func (l ActiveLoan) TakenAt() time.Time { return l.Taken }
func (l ActiveLoan) isLoan()            {}

// Return closes the loan at the given time.
func (l ActiveLoan) Return(at time.Time) (ReturnedLoan, error) {
	return NewReturnedLoan(l.Taken, at)
}

func (l ReturnedLoan) TakenAt() time.Time { return l.Taken }
func (l ReturnedLoan) isLoan()            {}

// ReturnedAt reports the return time of a loan and whether it was returned at all.
func ReturnedAt(loan Loan) (time.Time, bool) {
	if returned, ok := loan.(ReturnedLoan); ok {
		return returned.Returned, true
	}

	return time.Time{}, false
}

// IsActive reports whether the loan's book is still out.
func IsActive(loan Loan) bool {
	_, ok := loan.(ActiveLoan)
	return ok
}

// LoanFromColumns rebuilds a Loan from its persisted take and nullable return columns.
func LoanFromColumns(taken time.Time, returned *time.Time) (Loan, error) {
	if returned == nil {
		return NewActiveLoan(taken), nil
	}

	return NewReturnedLoan(taken, *returned)
}

// LoanColumns is the inverse of LoanFromColumns.
func LoanColumns(loan Loan) (time.Time, *time.Time) {
	switch l := loan.(type) {
	case ReturnedLoan:
		returned := l.Returned
		return l.Taken, &returned
	case ActiveLoan:
		return l.Taken, nil
	default:
		return time.Time{}, nil
	}
}
