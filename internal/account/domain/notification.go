package domain

// Template names a transactional mail kind.
type Template string

const (
	TemplateVerifyEmail   Template = "verify_email"
	TemplatePasswordReset Template = "password_reset"
)

// Notification is the payload handed to the Notifier collaborator. The core
// issues the token and formats the action link; delivery is someone else's
// problem.
type Notification struct {
	Recipient string   // user email address
	Template  Template // selects the mail body
	Token     string   // raw purpose token
	ActionURL string   // link embedding the token, built from config
}
