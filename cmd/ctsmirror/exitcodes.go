package main

import (
	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/mirror"
	"ctsmirror/internal/resolve"
	"ctsmirror/internal/secrets"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitNotFound   = 3
	exitRemote     = 4
	exitStore      = 5
	exitPartial    = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode prefers an explicit code and otherwise classifies the error.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var (
		ce      *cliError
		ve      *domain.ValidationError
		pe      *domain.ParseError
		nf      *domain.NotFoundError
		missing *resolve.MissingError
		remote  *talent.RemoteCallError
		conflict *talent.ConflictError
	)
	switch {
	case errors.As(err, &ce):
		return ce.code
	case errors.As(err, &ve), errors.As(err, &pe):
		return exitValidation
	case errors.As(err, &nf), errors.As(err, &missing), errors.Is(err, secrets.ErrNoCredentials):
		return exitNotFound
	case errors.Is(err, mirror.ErrAlreadyMirrored):
		return exitValidation
	case errors.As(err, &remote), errors.As(err, &conflict):
		return exitRemote
	case errors.Is(err, store.ErrLocked), errors.Is(err, store.ErrDuplicateKey), errors.Is(err, store.ErrUnknownParent):
		return exitStore
	}
	return exitFailure
}
