package templates_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/email/templates"
)

func TestAlertLayout(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.AlertLayout(templates.AlertEmail{
		Subject:  "Stock <low>",
		Body:     "Line one\nline two\n\nSecond paragraph",
		Priority: "critical",
		Footer:   "Sent by alertkit",
	}))
	require.NoError(t, err)

	assert.Contains(t, html, "Stock &lt;low&gt;")
	assert.Contains(t, html, "Line one<br>line two")
	assert.Equal(t, 2, strings.Count(html, `<p style="margin:0 0 12px`))
	assert.Contains(t, html, "#b91c1c")
	assert.Contains(t, html, "Sent by alertkit")
}

func TestAlertLayout_UnknownPriorityFallsBack(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.AlertLayout(templates.AlertEmail{
		Subject: "s", Body: "b", Priority: "weird",
	}))
	require.NoError(t, err)
	assert.Contains(t, html, "#1d4ed8")
	assert.NotContains(t, html, "font-size:12px")
}
