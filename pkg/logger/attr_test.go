package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()

	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()

	type channelType string

	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want string
	}{
		{"alert", logger.AlertID("a1"), "alert_id", "a1"},
		{"attempt", logger.AttemptID("t1"), "attempt_id", "t1"},
		{"recipient", logger.RecipientID("r1"), "recipient_id", "r1"},
		{"template", logger.TemplateID("tpl"), "template_id", "tpl"},
		{"channel", logger.Channel(channelType("sms")), "channel", "sms"},
		{"status", logger.Status(channelType("sent")), "status", "sent"},
		{"message", logger.MessageID("SM1"), "message_id", "SM1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.String())
		})
	}

	assert.True(t, logger.AlertID("").Equal(slog.Attr{}))
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}
