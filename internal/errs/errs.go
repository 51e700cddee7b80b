package errs

import "errors"

var ErrNotFound = errors.New("not found")

var ErrAlreadyExists = errors.New("already exists")

var ErrInvalidInput = errors.New("invalid input")

var ErrUnauthorized = errors.New("unauthorized")
