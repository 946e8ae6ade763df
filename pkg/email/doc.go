// Package email sends transactional email through Postmark, or writes it to
// disk with DevSender during local development.
//
// Both senders return the provider message id so delivery callbacks can be
// matched back to the originating send.
//
//	sender, err := email.NewPostmarkClient(cfg)
//	id, err := sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "ops@example.com",
//		Subject:  "Inventory low",
//		BodyHTML: html,
//		BodyText: text,
//		Tag:      "alert",
//	})
//
// The templates subpackage renders the HTML layout used for alert emails.
package email
