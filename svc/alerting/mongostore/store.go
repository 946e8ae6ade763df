// Package mongostore keeps alert templates, recipient profiles and
// recommendations in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xpertseller/alertkit/svc/alerting"
)

const (
	DefaultTemplatesCollection       = "alert_templates"
	DefaultRecipientsCollection      = "alert_recipients"
	DefaultRecommendationsCollection = "alert_recommendations"
)

var (
	_ alerting.TemplateStore        = (*Store)(nil)
	_ alerting.RecipientDirectory   = (*Store)(nil)
	_ alerting.RecommendationSource = (*Store)(nil)
)

// Store implements TemplateStore, RecipientDirectory and RecommendationSource.
type Store struct {
	templates       *mongo.Collection
	recipients      *mongo.Collection
	recommendations *mongo.Collection
	clock           func() time.Time
}

type Option func(*storeConfig)

type storeConfig struct {
	templates       string
	recipients      string
	recommendations string
	clock           func() time.Time
}

// WithCollections overrides collection names. Empty names keep the default.
func WithCollections(templates, recipients, recommendations string) Option {
	return func(o *storeConfig) {
		if templates != "" {
			o.templates = templates
		}
		if recipients != "" {
			o.recipients = recipients
		}
		if recommendations != "" {
			o.recommendations = recommendations
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *storeConfig) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func New(db *mongo.Database, opts ...Option) *Store {
	o := storeConfig{
		templates:       DefaultTemplatesCollection,
		recipients:      DefaultRecipientsCollection,
		recommendations: DefaultRecommendationsCollection,
		clock:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		templates:       db.Collection(o.templates),
		recipients:      db.Collection(o.recipients),
		recommendations: db.Collection(o.recommendations),
		clock:           o.clock,
	}
}

// EnsureIndexes creates the recommendation ranking index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.recommendations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "score", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongostore: create recommendation index: %w", err)
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (alerting.Template, error) {
	var doc templateDoc
	err := s.templates.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return alerting.Template{}, alerting.ErrTemplateNotFound
	}
	if err != nil {
		return alerting.Template{}, fmt.Errorf("mongostore: get template %s: %w", id, err)
	}
	return doc.template(), nil
}

// PutTemplate inserts or replaces a template.
func (s *Store) PutTemplate(ctx context.Context, t alerting.Template) error {
	doc := newTemplateDoc(t, s.clock())
	_, err := s.templates.ReplaceOne(ctx, bson.D{{Key: "_id", Value: t.ID}}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: put template %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) GetRecipientContext(ctx context.Context, id string) (alerting.Recipient, error) {
	var doc recipientDoc
	err := s.recipients.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return alerting.Recipient{}, alerting.ErrRecipientNotFound
	}
	if err != nil {
		return alerting.Recipient{}, fmt.Errorf("mongostore: get recipient %s: %w", id, err)
	}
	return doc.recipient(), nil
}

// PutRecipient inserts or replaces a recipient profile.
func (s *Store) PutRecipient(ctx context.Context, r alerting.Recipient) error {
	doc := newRecipientDoc(r, s.clock())
	_, err := s.recipients.ReplaceOne(ctx, bson.D{{Key: "_id", Value: r.ID}}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: put recipient %s: %w", r.ID, err)
	}
	return nil
}

// TopRecommendations returns the highest scored recommendations for a
// recipient.
func (s *Store) TopRecommendations(ctx context.Context, recipientID string, limit int) ([]alerting.Recommendation, error) {
	if limit <= 0 {
		return nil, nil
	}
	cur, err := s.recommendations.Find(ctx,
		bson.D{{Key: "recipient_id", Value: recipientID}},
		options.Find().
			SetSort(bson.D{{Key: "score", Value: -1}, {Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, errors.Join(alerting.ErrRecommendationsDown, err)
	}
	var docs []recommendationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(alerting.ErrRecommendationsDown, err)
	}

	out := make([]alerting.Recommendation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.recommendation())
	}
	return out, nil
}

// AddRecommendation stores a recommendation for a recipient.
func (s *Store) AddRecommendation(ctx context.Context, recipientID string, r alerting.Recommendation) error {
	_, err := s.recommendations.InsertOne(ctx, newRecommendationDoc(recipientID, r, s.clock()))
	if err != nil {
		return fmt.Errorf("mongostore: add recommendation: %w", err)
	}
	return nil
}
