package service

import "errors"

var (
	ErrInvalidCart     = errors.New("invalid cart")
	ErrInvalidCustomer = errors.New("invalid customer details")
	ErrNotPaid         = errors.New("transaction is not successful")
	ErrReconciliation  = errors.New("order reconciliation failed")
)
