package server

import (
	"github.com/rs/zerolog/log"

	"github.com/apannell/go-secure-api/accounts"
)

// Notifier delivers out-of-band messages to account holders. Delivery
// transport (email, SMS) lives outside this service; implementations receive
// the reset token ID and own getting it to the user.
type Notifier interface {
	NotifyPasswordReset(account *accounts.Account, tokenID string) error
}

// logNotifier is the default no-delivery notifier. It records that a reset
// was requested without logging the token itself.
type logNotifier struct{}

var _ Notifier = logNotifier{}

func (logNotifier) NotifyPasswordReset(account *accounts.Account, _ string) error {
	log.Info().Str("account_id", account.ID).Msg("password reset requested; no notifier configured")
	return nil
}
