package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xpertseller/alertkit/svc/alerting"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestTemplateDocument(t *testing.T) {
	t.Parallel()

	in := alerting.Template{
		ID:                "listing-suppressed",
		ChannelHint:       alerting.ChannelEmail,
		Subject:           "Listing {{asin}} suppressed",
		Body:              "Fix {{asin}} today",
		RequiredVariables: []string{"asin"},
		Urgency:           alerting.UrgencyHigh,
		Personalization: alerting.Personalization{
			Tone:                   alerting.ToneUrgent,
			IncludeRecommendations: true,
		},
	}

	raw, err := bson.Marshal(newTemplateDoc(in, now))
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "listing-suppressed", fields["_id"])
	assert.Equal(t, "high", fields["urgency"])

	var doc templateDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, in, doc.template())
}

func TestRecipientDocument(t *testing.T) {
	t.Parallel()

	in := alerting.Recipient{
		ID:          "seller-1",
		DisplayName: "Ada",
		Timezone:    "Europe/Berlin",
		Contacts: map[alerting.ChannelType]string{
			alerting.ChannelEmail: "ada@example.com",
			alerting.ChannelSMS:   "+4915112345678",
		},
		PreferredChannels: []alerting.ChannelType{alerting.ChannelSMS, alerting.ChannelEmail},
		Tone:              alerting.ToneFriendly,
	}

	raw, err := bson.Marshal(newRecipientDoc(in, now))
	require.NoError(t, err)

	var doc recipientDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, in, doc.recipient())
}

func TestRecipientDocument_Empty(t *testing.T) {
	t.Parallel()

	got := newRecipientDoc(alerting.Recipient{ID: "r"}, now).recipient()
	assert.Nil(t, got.Contacts)
	assert.Nil(t, got.PreferredChannels)
}

func TestRecommendationDocument(t *testing.T) {
	t.Parallel()

	doc := newRecommendationDoc("seller-1", alerting.Recommendation{Title: "Lower price", Score: 0.8}, now)
	assert.Equal(t, "seller-1", doc.RecipientID)
	assert.True(t, doc.ID.IsZero())
	assert.Equal(t, alerting.Recommendation{Title: "Lower price", Score: 0.8}, doc.recommendation())
}
