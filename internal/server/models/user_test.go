package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_MatchesDeleted(t *testing.T) {
	active := User{ID: 1}
	gone := User{ID: 2, Deleted: true}

	assert.True(t, active.MatchesDeleted(nil))
	assert.True(t, gone.MatchesDeleted(nil))

	assert.True(t, active.MatchesDeleted(OnlyActive()))
	assert.False(t, gone.MatchesDeleted(OnlyActive()))

	assert.True(t, gone.MatchesDeleted(OnlyDeleted()))
	assert.False(t, active.MatchesDeleted(OnlyDeleted()))
}

func TestUser_Keys_AreCaseInsensitive(t *testing.T) {
	a := User{FirstName: "John", Surname: "Doe", EmailAddress: "John.Doe@Example.com", Username: "JohnDoe"}
	b := User{FirstName: "JOHN", Surname: "doe", EmailAddress: "john.doe@example.COM", Username: "johndoe"}

	assert.Equal(t, a.EmailKey(), b.EmailKey())
	assert.Equal(t, a.UsernameKey(), b.UsernameKey())
	assert.Equal(t, a.FullNameKey(), b.FullNameKey())
}

func TestUser_Keys_UnicodeFolding(t *testing.T) {
	a := User{Username: "STRASSE", FirstName: "Σοφία", Surname: "X"}
	b := User{Username: "straße", FirstName: "σοφία", Surname: "x"}

	assert.Equal(t, a.UsernameKey(), b.UsernameKey())
	assert.Equal(t, a.FullNameKey(), b.FullNameKey())
}

func TestUser_FullNameKey_KeepsPartsApart(t *testing.T) {
	a := User{FirstName: "ab", Surname: "c"}
	b := User{FirstName: "a", Surname: "bc"}

	assert.NotEqual(t, a.FullNameKey(), b.FullNameKey())
}
