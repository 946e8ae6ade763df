package validator_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("no failures returns nil", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("name", "x"),
			validator.MaxLen("name", "x", 3),
		)
		assert.NoError(t, err)
	})

	t.Run("collects every failure", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("template_id", "  "),
			validator.OneOf("priority", "urgent", []string{"low", "normal", "high", "critical"}),
			validator.Required("recipient_id", "r-1"),
		)
		require.Error(t, err)
		assert.True(t, validator.IsValidationError(err))
		assert.ErrorIs(t, err, validator.ErrValidationFailed)

		ve := validator.ExtractValidationErrors(err)
		require.Len(t, ve, 2)
		assert.Equal(t, []string{"template_id", "priority"}, ve.Fields())
		assert.True(t, ve.Has("priority"))
		assert.False(t, ve.Has("recipient_id"))
		assert.Contains(t, err.Error(), "template_id: is required")
	})

	t.Run("extract through wrapping", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("send alert: %w", validator.Apply(validator.Required("x", "")))
		assert.Len(t, validator.ExtractValidationErrors(err), 1)
		assert.Nil(t, validator.ExtractValidationErrors(errors.New("other")))
	})
}

func TestWhen(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.When(false, validator.ValidEmail("email", "nope"))))
	assert.Error(t, validator.Apply(validator.When(true, validator.ValidEmail("email", "nope"))))
}

func TestRules(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule validator.Rule
		ok   bool
	}{
		{"email ok", validator.ValidEmail("e", "ops@example.com"), true},
		{"email bad", validator.ValidEmail("e", "ops@"), false},
		{"phone ok", validator.ValidPhone("p", "+14155550100"), true},
		{"phone no plus", validator.ValidPhone("p", "14155550100"), false},
		{"url ok", validator.ValidURL("u", "https://hooks.example.com/x"), true},
		{"url relative", validator.ValidURL("u", "/x"), false},
		{"url ftp", validator.ValidURL("u", "ftp://example.com"), false},
		{"range ok", validator.Range("w", 30, 1, 365), true},
		{"range low", validator.Range("w", 0, 1, 365), false},
		{"after ok", validator.After("t", now.Add(time.Minute), now), true},
		{"after equal", validator.After("t", now, now), false},
		{"max len runes", validator.MaxLen("s", "héllo", 5), true},
		{"each ok", validator.Each("c", []string{"a", "b"}, func(s string) bool { return s != "" }, "empty"), true},
		{"each bad", validator.Each("c", []string{"a", ""}, func(s string) bool { return s != "" }, "empty"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.ok, tt.rule.Check())
		})
	}
}
