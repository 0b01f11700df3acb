package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbook/librarian/internal/domain"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "valid id", id: "42"},
		{name: "zero is a valid id", id: "0"},
		{name: "empty id", id: "", wantErr: domain.ErrInvalidUserID},
		{name: "whitespace-only id", id: "  ", wantErr: domain.ErrInvalidUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			user, err := domain.NewUser(tt.id, "Ana")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.id, user.ID)
			assert.Empty(t, user.Loans)
		})
	}
}

func TestUserHolds(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: "1", Loans: []string{"A", "B"}}

	assert.True(t, user.Holds("A"))
	assert.False(t, user.Holds("C"))
}
