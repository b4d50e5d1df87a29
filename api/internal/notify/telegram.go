// Package notify sends non-compliance alerts to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"labelcheck/api/internal/compliance"
	"labelcheck/api/internal/rules"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot    sender
	chatID int64
	log    *zap.Logger
}

var _ compliance.Notifier = (*Telegram)(nil)

// NewTelegram logs in with token. endpoint may be empty for the public API.
func NewTelegram(token, endpoint string, chatID int64, log *zap.Logger) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("telegram notifier ready", zap.String("bot", bot.Self.UserName), zap.Int64("chat_id", chatID))
	return &Telegram{bot: bot, chatID: chatID, log: log}, nil
}

// NonCompliant posts a short alert. The bot API has no context support; the
// call is skipped when ctx is already done.
func (t *Telegram) NonCompliant(ctx context.Context, p compliance.Product, res *compliance.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, Message(p, res))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.log.Debug("non-compliance alert sent", zap.String("product_id", p.ID))
	return nil
}

const maxListed = 5

// Message renders the alert text.
func Message(p compliance.Product, res *compliance.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ NON-COMPLIANT: %s\n", orID(p))
	fmt.Fprintf(&b, "Product: %s\n", p.ID)
	if p.Marketplace != "" {
		fmt.Fprintf(&b, "Marketplace: %s\n", p.Marketplace)
	}
	fmt.Fprintf(&b, "Score: %.1f  Grade: %s\n", res.Score, res.Grade)
	fmt.Fprintf(&b, "Checks: %d passed, %d failed\n", res.Passed, res.Failed)

	var critical []string
	for _, v := range res.Verdicts {
		if !v.Passed && v.Severity == rules.Critical {
			critical = append(critical, v.RuleID+" "+v.RuleName)
		}
	}
	if len(critical) > 0 {
		b.WriteString("Critical failures:\n")
		for i, c := range critical {
			if i == maxListed {
				fmt.Fprintf(&b, "… and %d more\n", len(critical)-maxListed)
				break
			}
			b.WriteString("• " + c + "\n")
		}
	}
	if p.URL != "" {
		b.WriteString(p.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orID(p compliance.Product) string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	return p.ID
}
