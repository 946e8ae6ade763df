// Package channels implements alerting.Transport for each delivery provider:
// Postmark email, Twilio SMS and WhatsApp, Telegram, signed JSON webhooks
// (Slack incoming webhooks included) and the in-app dashboard.
//
// Transports perform exactly one provider call per Send. Retries across
// channels are the dispatcher's job.
package channels
