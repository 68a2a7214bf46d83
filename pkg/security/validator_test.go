package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSearchQuery(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		expectError error
		expected    string
	}{
		{name: "empty query", query: "", expected: ""},
		{name: "simple username", query: "new_user", expected: "new_user"},
		{name: "trims whitespace", query: "  john doe ", expected: "john doe"},
		{name: "email fragment", query: "newuser@email.com", expected: "newuser@email.com"},
		{name: "words containing keywords", query: "created", expected: "created"},
		{name: "too long", query: strings.Repeat("a", MaxSearchQueryLength+1), expectError: ErrSearchQueryTooLong},
		{name: "union select", query: "john UNION SELECT", expectError: ErrSearchQueryInvalid},
		{name: "tautology", query: "john OR 1=1", expectError: ErrSearchQueryInvalid},
		{name: "comment", query: "john --", expectError: ErrSearchQueryInvalid},
		{name: "drop table", query: "john; DROP TABLE users", expectError: ErrSearchQueryInvalid},
		{name: "script tag", query: "<script>alert('xss')</script>", expectError: ErrSearchQueryInvalid},
		{name: "ampersand", query: "john&doe", expectError: ErrSearchQueryInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateSearchQuery(tt.query)
			if tt.expectError != nil {
				require.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `new\_user`, EscapeLike("new_user"))
	assert.Equal(t, `100\%`, EscapeLike("100%"))
	assert.Equal(t, `a\\b`, EscapeLike(`a\b`))
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("new_user"))
	assert.True(t, ValidUsername("jane.doe+news@example"))
	assert.True(t, ValidUsername("zoë"))
	assert.False(t, ValidUsername(""))
	assert.False(t, ValidUsername("has space"))
	assert.False(t, ValidUsername("semi;colon"))
	assert.False(t, ValidUsername(strings.Repeat("a", MaxUsernameLength+1)))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "NewUser@email.com", NormalizeEmail(" NewUser@EMAIL.COM "))
	assert.Equal(t, "newuser@email.com", NormalizeEmail("newuser@email.com"))
	assert.Equal(t, "", NormalizeEmail(""))
	assert.Equal(t, "no-at-sign", NormalizeEmail("no-at-sign"))
}
