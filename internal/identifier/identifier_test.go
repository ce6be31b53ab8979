package identifier

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogsphere/internal/models"
)

func TestParse_Valid(t *testing.T) {
	want := uuid.New()
	got, err := Parse(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = Parse(strings.ToUpper(want.String()))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"integer", 123},
		{"map", map[string]any{"$gt": ""}},
		{"empty", ""},
		{"garbage", "not-an-id"},
		{"nil uuid", uuid.Nil.String()},
		{"braced", "{" + uuid.New().String() + "}"},
		{"urn form", "urn:uuid:" + uuid.New().String()},
		{"no hyphens", strings.ReplaceAll(uuid.New().String(), "-", "")},
		{"bad hex", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.raw)
			assert.Equal(t, uuid.Nil, id)
			assert.True(t, models.HasCode(err, models.CodeInvalidIdentifier))
			assert.False(t, IsValid(tt.raw))
		})
	}
}
