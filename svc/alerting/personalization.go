package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/sanitizer"
)

const maxRecommendations = 3

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-]+)\s*\}\}`)

var errUnresolvedPlaceholder = errors.New("unresolved placeholder")

// Recommendation is one ranked next step from a RecommendationSource.
type Recommendation struct {
	Title  string  `json:"title"`
	Detail string  `json:"detail,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// RecommendationSource supplies ranked suggestions for a recipient.
type RecommendationSource interface {
	TopRecommendations(ctx context.Context, recipientID string, limit int) ([]Recommendation, error)
}

// RenderRequest carries everything needed to render one channel's content.
// Urgency is the alert's effective urgency and only picks the default tone.
type RenderRequest struct {
	Template  Template
	Variables map[string]any
	Recipient Recipient
	Channel   Channel
	Urgency   Urgency
	Now       time.Time
}

// Engine turns a template and variables into channel-ready content.
type Engine struct {
	recs   RecommendationSource
	clock  func() time.Time
	logger *slog.Logger
}

type EngineOption func(*Engine)

// WithRecommendations enables the recommendations step.
func WithRecommendations(src RecommendationSource) EngineOption {
	return func(e *Engine) { e.recs = src }
}

func WithEngineClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks that every required variable resolves from variables or
// from the recipient profile.
func (e *Engine) Validate(t Template, variables map[string]any, r Recipient) error {
	values := e.values(variables, r)
	var missing []FieldError
	for _, key := range t.RequiredVariables {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, FieldError{
				Field:   "variables." + key,
				Message: fmt.Sprintf("required by template %q", t.ID),
			})
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Render validates the request and renders content. Only validation failures
// are returned as errors; any other failure falls back to a degraded render
// of the raw template.
func (e *Engine) Render(ctx context.Context, req RenderRequest) (Content, error) {
	if err := e.Validate(req.Template, req.Variables, req.Recipient); err != nil {
		return Content{}, err
	}
	if req.Now.IsZero() {
		req.Now = e.clock()
	}

	content, err := e.render(ctx, req)
	if err == nil {
		return content, nil
	}

	e.logger.LogAttrs(ctx, slog.LevelWarn, "degraded render",
		logger.Event("render.degraded"),
		logger.TemplateID(req.Template.ID),
		logger.RecipientID(req.Recipient.ID),
		logger.Channel(req.Channel.Type),
		logger.Error(err),
	)
	return e.degraded(req), nil
}

func (e *Engine) render(ctx context.Context, req RenderRequest) (c Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()

	values := e.values(req.Variables, req.Recipient)
	subject, err := substitute(req.Template.Subject, values)
	if err != nil {
		return Content{}, err
	}
	body, err := substitute(req.Template.Body, values)
	if err != nil {
		return Content{}, err
	}

	p := req.Template.Personalization
	if p.IncludeContext {
		body = e.withContext(body, req)
	}

	subject, body = e.applyTone(e.tone(req), subject, body)

	if p.IncludeRecommendations {
		body = e.withRecommendations(ctx, body, req.Recipient.ID)
	}

	return formatForChannel(req.Channel, Content{Subject: subject, Body: body}), nil
}

func (e *Engine) degraded(req RenderRequest) Content {
	values := e.values(req.Variables, req.Recipient)
	subject := sanitizer.RemovePlaceholders(substituteLoose(req.Template.Subject, values))
	body := sanitizer.RemovePlaceholders(substituteLoose(req.Template.Body, values))
	c := formatForChannel(req.Channel, Content{Subject: strings.TrimSpace(subject), Body: strings.TrimSpace(body)})
	c.Degraded = true
	return c
}

// values merges recipient-derived keys with the caller's variables; explicit
// variables win.
func (e *Engine) values(variables map[string]any, r Recipient) map[string]string {
	out := make(map[string]string, len(variables)+5)
	if r.ID != "" {
		out["recipient_id"] = r.ID
	}
	if r.DisplayName != "" {
		out["display_name"] = r.DisplayName
		out["name"] = r.DisplayName
		out["first_name"] = e.firstName(r.DisplayName)
	}
	if r.PerformanceSummary != "" {
		out["performance_summary"] = r.PerformanceSummary
	}
	for k, v := range variables {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func (e *Engine) firstName(display string) string {
	fields := strings.Fields(display)
	if len(fields) == 0 {
		return ""
	}
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.Und).String(fields[0])
}

func substitute(s string, values map[string]string) (string, error) {
	var missing []string
	out := placeholderRegex.ReplaceAllStringFunc(s, func(m string) string {
		key := placeholderRegex.FindStringSubmatch(m)[1]
		if v, ok := values[key]; ok {
			return v
		}
		missing = append(missing, key)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", errUnresolvedPlaceholder, strings.Join(missing, ", "))
	}
	return out, nil
}

func substituteLoose(s string, values map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := values[placeholderRegex.FindStringSubmatch(m)[1]]; ok {
			return v
		}
		return m
	})
}

// greeting picks a salutation from the recipient's local hour.
func greeting(now time.Time, loc *time.Location) string {
	switch h := now.In(loc).Hour(); {
	case h >= 5 && h < 12:
		return "Good morning"
	case h >= 12 && h < 17:
		return "Good afternoon"
	case h >= 17 && h < 22:
		return "Good evening"
	default:
		return "Hello"
	}
}

func (e *Engine) withContext(body string, req RenderRequest) string {
	salutation := greeting(req.Now, req.Recipient.Location())
	if name := e.firstName(req.Recipient.DisplayName); name != "" {
		salutation += ", " + name
	}
	body = salutation + ",\n\n" + body

	if !req.Channel.IsShort() && req.Recipient.PerformanceSummary != "" {
		body += "\n\nRecent performance: " + req.Recipient.PerformanceSummary
	}
	return body
}

// tone picks the recipient's preference, then the template's. Critical
// alerts without either read as urgent.
func (e *Engine) tone(req RenderRequest) Tone {
	if req.Recipient.Tone != "" {
		return req.Recipient.Tone
	}
	if req.Template.Personalization.Tone != "" {
		return req.Template.Personalization.Tone
	}
	if req.Urgency == UrgencyCritical {
		return ToneUrgent
	}
	return ToneProfessional
}

var imperativeRegex = regexp.MustCompile(`(?i)\b(act|review|check|respond|update|fix|verify|confirm|now|immediately)\b`)

const urgentMarker = "[URGENT] "

func (e *Engine) applyTone(t Tone, subject, body string) (string, string) {
	switch t {
	case ToneUrgent:
		body = imperativeRegex.ReplaceAllStringFunc(body, cases.Upper(language.Und).String)
		if subject != "" {
			if !strings.HasPrefix(subject, urgentMarker) {
				subject = urgentMarker + subject
			}
		} else if !strings.HasPrefix(body, urgentMarker) {
			body = urgentMarker + body
		}
	case ToneFriendly:
		body = friendly(body)
	}
	return subject, body
}

// friendly adds a light marker after the closing sentence of each paragraph.
func friendly(body string) string {
	paras := strings.Split(body, "\n\n")
	for i, p := range paras {
		trimmed := strings.TrimRight(p, " \n")
		if trimmed == "" {
			continue
		}
		switch trimmed[len(trimmed)-1] {
		case '.', '!', '?':
			paras[i] = trimmed + " 🙂"
		}
	}
	return strings.Join(paras, "\n\n")
}

func (e *Engine) withRecommendations(ctx context.Context, body, recipientID string) string {
	if e.recs == nil {
		return body
	}
	recs, err := e.recs.TopRecommendations(ctx, recipientID, maxRecommendations)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "recommendations unavailable",
			logger.RecipientID(recipientID),
			logger.Error(err),
		)
		return body
	}
	if len(recs) == 0 {
		return body
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\nRecommended next steps:")
	for i, r := range recs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, r.Title)
		if r.Detail != "" {
			b.WriteString(": " + r.Detail)
		}
	}
	return b.String()
}

// formatForChannel folds the subject into the body, strips markup and
// truncates for short channels. Long channels are returned unchanged.
func formatForChannel(ch Channel, c Content) Content {
	if !ch.IsShort() {
		return c
	}
	body := c.Body
	if c.Subject != "" {
		body = c.Subject + "\n\n" + body
	}
	body = sanitizer.Apply(body,
		sanitizer.StripMarkup,
		func(s string) string { return sanitizer.Truncate(s, ch.Limit(), "…") },
	)
	return Content{Body: body, Degraded: c.Degraded}
}
