package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_IsAdmin(t *testing.T) {
	assert.True(t, User{Role: RoleAdmin}.IsAdmin())
	assert.False(t, User{Role: RoleClient}.IsAdmin())
	assert.False(t, User{}.IsAdmin())
}

func TestStaticProvider_Current(t *testing.T) {
	p := StaticProvider{User: User{ID: "u1", Email: "u1@example.com", Role: RoleClient}}

	got, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p.User, got)
}

func TestStaticProvider_Unauthenticated(t *testing.T) {
	_, err := StaticProvider{}.Current(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
