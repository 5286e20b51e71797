package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidArgument flags unusable caller input before it reaches storage.
var ErrInvalidArgument = errors.New("repository: invalid argument")

// ErrInsufficientFunds means a wallet debit was declined because it would
// drive the balance below zero.
var ErrInsufficientFunds = errors.New("repository: insufficient funds")
