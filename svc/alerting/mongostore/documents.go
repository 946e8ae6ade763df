package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xpertseller/alertkit/svc/alerting"
)

type templateDoc struct {
	ID                     string    `bson:"_id"`
	ChannelHint            string    `bson:"channel_hint,omitempty"`
	Subject                string    `bson:"subject"`
	Body                   string    `bson:"body"`
	RequiredVariables      []string  `bson:"required_variables,omitempty"`
	Urgency                string    `bson:"urgency"`
	Tone                   string    `bson:"tone,omitempty"`
	IncludeContext         bool      `bson:"include_context"`
	IncludeRecommendations bool      `bson:"include_recommendations"`
	UpdatedAt              time.Time `bson:"updated_at"`
}

func newTemplateDoc(t alerting.Template, now time.Time) templateDoc {
	return templateDoc{
		ID:                     t.ID,
		ChannelHint:            string(t.ChannelHint),
		Subject:                t.Subject,
		Body:                   t.Body,
		RequiredVariables:      t.RequiredVariables,
		Urgency:                string(t.Urgency),
		Tone:                   string(t.Personalization.Tone),
		IncludeContext:         t.Personalization.IncludeContext,
		IncludeRecommendations: t.Personalization.IncludeRecommendations,
		UpdatedAt:              now.UTC(),
	}
}

func (d templateDoc) template() alerting.Template {
	return alerting.Template{
		ID:                d.ID,
		ChannelHint:       alerting.ChannelType(d.ChannelHint),
		Subject:           d.Subject,
		Body:              d.Body,
		RequiredVariables: d.RequiredVariables,
		Urgency:           alerting.Urgency(d.Urgency),
		Personalization: alerting.Personalization{
			Tone:                   alerting.Tone(d.Tone),
			IncludeContext:         d.IncludeContext,
			IncludeRecommendations: d.IncludeRecommendations,
		},
	}
}

type recipientDoc struct {
	ID                 string            `bson:"_id"`
	DisplayName        string            `bson:"display_name"`
	Timezone           string            `bson:"timezone,omitempty"`
	Contacts           map[string]string `bson:"contacts,omitempty"`
	PreferredChannels  []string          `bson:"preferred_channels,omitempty"`
	Tone               string            `bson:"tone,omitempty"`
	PerformanceSummary string            `bson:"performance_summary,omitempty"`
	UpdatedAt          time.Time         `bson:"updated_at"`
}

func newRecipientDoc(r alerting.Recipient, now time.Time) recipientDoc {
	doc := recipientDoc{
		ID:                 r.ID,
		DisplayName:        r.DisplayName,
		Timezone:           r.Timezone,
		Tone:               string(r.Tone),
		PerformanceSummary: r.PerformanceSummary,
		UpdatedAt:          now.UTC(),
	}
	if len(r.Contacts) > 0 {
		doc.Contacts = make(map[string]string, len(r.Contacts))
		for ch, addr := range r.Contacts {
			doc.Contacts[string(ch)] = addr
		}
	}
	for _, ch := range r.PreferredChannels {
		doc.PreferredChannels = append(doc.PreferredChannels, string(ch))
	}
	return doc
}

func (d recipientDoc) recipient() alerting.Recipient {
	r := alerting.Recipient{
		ID:                 d.ID,
		DisplayName:        d.DisplayName,
		Timezone:           d.Timezone,
		Tone:               alerting.Tone(d.Tone),
		PerformanceSummary: d.PerformanceSummary,
	}
	if len(d.Contacts) > 0 {
		r.Contacts = make(map[alerting.ChannelType]string, len(d.Contacts))
		for ch, addr := range d.Contacts {
			r.Contacts[alerting.ChannelType(ch)] = addr
		}
	}
	for _, ch := range d.PreferredChannels {
		r.PreferredChannels = append(r.PreferredChannels, alerting.ChannelType(ch))
	}
	return r
}

type recommendationDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	RecipientID string        `bson:"recipient_id"`
	Title       string        `bson:"title"`
	Detail      string        `bson:"detail,omitempty"`
	Score       float64       `bson:"score"`
	CreatedAt   time.Time     `bson:"created_at"`
}

func newRecommendationDoc(recipientID string, r alerting.Recommendation, now time.Time) recommendationDoc {
	return recommendationDoc{
		RecipientID: recipientID,
		Title:       r.Title,
		Detail:      r.Detail,
		Score:       r.Score,
		CreatedAt:   now.UTC(),
	}
}

func (d recommendationDoc) recommendation() alerting.Recommendation {
	return alerting.Recommendation{Title: d.Title, Detail: d.Detail, Score: d.Score}
}
