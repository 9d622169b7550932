package domain

import "errors"

// ErrNotFound indicates that a referenced account, rank, pack or purchase
// does not exist. It aborts the triggering operation.
var ErrNotFound = errors.New("not found")

// ErrInsufficientFunds indicates that a wallet debit failed. A purchase
// hitting this error aborts before any bonus mutation.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrInvariantViolation indicates a bookkeeping invariant would be broken
// (e.g. matched delta exceeding leg volume). The offending batch must be
// rejected, never clamped.
var ErrInvariantViolation = errors.New("invariant violation")

// ErrPurchaseSettled indicates an attempt to re-distribute a purchase
// whose pipeline already completed.
var ErrPurchaseSettled = errors.New("purchase already settled")

// ErrTierDowngrade indicates an attempt to buy a lower pack tier than the
// buyer's last purchase.
var ErrTierDowngrade = errors.New("cannot buy a lower pack tier than the last purchase")
