package email

// Config holds email transport configuration.
// Postmark tokens are optional so development environments can fall back to
// DevSender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	ReplyToEmail         string `env:"REPLY_TO_EMAIL"`
	DevOutputDir         string `env:"DEV_OUTPUT_DIR" envDefault:"./tmp/emails"`
}
