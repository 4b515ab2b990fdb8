package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"landlord", RoleLandlord, false},
		{"tenant", RoleTenant, false},
		{"agent", RoleAgent, false},
		{"propertyManager", RolePropertyManager, false},
		{"admin", "", true},
		{"Landlord", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleDescribe(t *testing.T) {
	for _, r := range Roles() {
		d := r.Describe()
		assert.NotEmpty(t, d.Emoji, r)
		assert.NotEmpty(t, d.Label, r)
	}
	assert.Equal(t, "mystery", Role("mystery").Describe().Label)
}

func TestToken_CopiesDoNotAlias(t *testing.T) {
	orig := Token{
		UserID:     "u1",
		Roles:      []Role{RoleTenant},
		ActiveRole: RolePtr(RoleTenant),
		IssuedAt:   time.Unix(100, 0),
	}

	changed := orig.WithRoles([]Role{RoleTenant, RoleLandlord}).WithActiveRole(RolePtr(RoleLandlord))

	assert.Equal(t, []Role{RoleTenant}, orig.Roles)
	assert.True(t, orig.ActiveRoleIs(RoleTenant))
	assert.True(t, changed.ActiveRoleIs(RoleLandlord))
	assert.True(t, changed.HasRole(RoleLandlord))

	c := orig.Clone()
	c.Roles[0] = RoleAgent
	*c.ActiveRole = RoleAgent
	assert.Equal(t, RoleTenant, orig.Roles[0])
	assert.Equal(t, RoleTenant, *orig.ActiveRole)
}

func TestToken_Equal(t *testing.T) {
	a := Token{UserID: "u1", Roles: []Role{RoleTenant}, ActiveRole: RolePtr(RoleTenant)}
	assert.True(t, a.Equal(a.Clone()))
	assert.False(t, a.Equal(a.WithActiveRole(nil)))
	assert.False(t, a.Equal(a.WithRoles(nil)))
	assert.True(t, Token{}.IsEmpty())
}

func TestSessionPatch_IsZero(t *testing.T) {
	var nilPatch *SessionPatch
	assert.True(t, nilPatch.IsZero())
	assert.True(t, (&SessionPatch{}).IsZero())
	verified := true
	assert.False(t, (&SessionPatch{Verified: &verified}).IsZero())
}

func TestAuthError(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := NewAuthError(ErrConnectionTimeout, "Connection timed out", cause)

	assert.ErrorIs(t, err, ErrConnectionTimeout)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrBackendRejected)
	assert.Equal(t, "Connection timed out", ReasonOf(err, "fallback"))
	assert.Equal(t, "fallback", ReasonOf(errors.New("other"), "fallback"))

	noCause := NewAuthError(ErrBackendRejected, "Email not allowed", nil)
	assert.ErrorIs(t, noCause, ErrBackendRejected)
	assert.Contains(t, noCause.Error(), "Email not allowed")
}
