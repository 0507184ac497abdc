package app

import (
	"errors"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

var (
	ErrNotFound   = ports.ErrNotFound
	ErrConflict   = ports.ErrConflict
	ErrValidation = domain.ErrValidation

	// ErrBusy : une autre mutation du même utilisateur est en cours.
	ErrBusy = errors.New("another change is still in progress")

	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Codes d'erreur stables exposés par l'API.
const (
	CodeValidation      = "validation"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeBusy            = "busy"
	CodeUnauthenticated = "unauthenticated"
	CodeStoreFailure    = "store_failure"
	CodeRateLimited     = "rate_limited"
	CodeUnavailable     = "unavailable"
)

// CodedError fixe le code d'une erreur et le message montré au client.
// La cause reste accessible par errors.Is.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func Coded(code, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Err: cause}
}

func (e *CodedError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Code
	}
}

func (e *CodedError) Unwrap() error { return e.Err }

// Classify ramène n'importe quelle erreur de service à un code stable.
// Tout ce qui n'est pas reconnu est un échec du stockage.
func Classify(err error) string {
	var coded *CodedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &coded) && coded.Code != "":
		return coded.Code
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrBusy):
		return CodeBusy
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return CodeUnauthenticated
	default:
		return CodeStoreFailure
	}
}
