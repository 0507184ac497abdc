package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("update: %w", ErrNotFound), CodeNotFound},
		{domain.ErrValidation, CodeValidation},
		{ErrInvalidToken, CodeUnauthenticated},
		{ErrBusy, CodeBusy},
		{errors.New("disk full"), CodeStoreFailure},
		// le code explicite l'emporte sur la cause
		{Coded(CodeConflict, "already taken", ErrNotFound), CodeConflict},
		{fmt.Errorf("wrapped: %w", Coded(CodeRateLimited, "", nil)), CodeRateLimited},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}

func TestCodedError_MessageAndCause(t *testing.T) {
	err := Coded(CodeBusy, "still saving", ErrBusy)
	assert.EqualError(t, err, "still saving")
	assert.ErrorIs(t, err, ErrBusy)

	assert.EqualError(t, Coded(CodeBusy, "", ErrBusy), ErrBusy.Error())
	assert.EqualError(t, Coded(CodeUnavailable, "", nil), CodeUnavailable)
}
