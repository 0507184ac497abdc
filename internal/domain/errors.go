package domain

import "errors"

// ErrValidation est la cible errors.Is de toutes les ValidationError.
var ErrValidation = errors.New("validation failed")

// ErrUnknownSeason est renvoyée quand une saison n'appartient pas au titre.
var ErrUnknownSeason = errors.New("season does not belong to title")

// ValidationError signale une saisie invalide, détectée avant toute écriture.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
