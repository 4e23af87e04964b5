package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/internal/adapters/config"
	"github.com/selivandex/signal-engine/internal/improve"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// Notifier sends cycle notifications to a single Telegram chat. A nil
// Notifier is valid and drops every message, so callers never need to
// branch on whether alerts are configured.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	cfg    *config.TelegramConfig
}

// NewNotifier creates new Telegram notifier. Returns nil when no bot
// token is configured.
func NewNotifier(cfg *config.TelegramConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		logger.Info("telegram notifications disabled, no bot token")
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
	)

	return &Notifier{
		api:    bot,
		chatID: cfg.ChatID,
		cfg:    cfg,
	}, nil
}

// SendPredictionAlert announces the day's pick
func (n *Notifier) SendPredictionAlert(date, symbol string, score float64, version int) {
	if n == nil || !n.cfg.AlertOnTrades {
		return
	}

	msg := fmt.Sprintf("🎯 *Prediction %s*\nPick: `%s`\nScore: %.4f\nStrategy: v%d",
		date, symbol, score, version)
	n.send(msg)
}

// SendOutcomeAlert announces yesterday's realized result
func (n *Notifier) SendOutcomeAlert(date, symbol string, actualReturn float64, rank int) {
	if n == nil || !n.cfg.AlertOnTrades {
		return
	}

	emoji := "💚"
	sign := "+"
	if actualReturn < 0 {
		emoji = "❤️"
		sign = ""
	}

	msg := fmt.Sprintf("%s *Result %s*\nPick: `%s`\nReturn: %s%.2f%%\nRank: #%d of %d",
		emoji, date, symbol, sign, actualReturn, rank, models.UniverseSize())
	n.send(msg)
}

// SendPromotionAlert announces a strategy upgrade
func (n *Notifier) SendPromotionAlert(promo *improve.Promotion) {
	if n == nil || !n.cfg.AlertOnUpgrade || promo == nil {
		return
	}

	msg := fmt.Sprintf("🧠 *Strategy promoted*\nVersion: v%d (%s)\nCorrelation: %.4f (Δ %.4f)\nAvg return: %.2f%% (Δ %.2f)\n```\n%s\n```",
		promo.Version.Version, promo.Version.ImprovementType,
		promo.Version.RankCorrelation, promo.CorrDelta,
		promo.Version.AvgDailyReturn, promo.ReturnDelta,
		promo.Version.StrategyCode)
	n.send(msg)
}

// SendErrorAlert reports a failed cycle stage
func (n *Notifier) SendErrorAlert(stage string, err error) {
	if n == nil || !n.cfg.AlertOnErrors || err == nil {
		return
	}

	msg := fmt.Sprintf("⚠️ *Stage failed: %s*\n`%v`\n%s",
		stage, err, time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	n.send(msg)
}

// SendReport delivers a preformatted report body
func (n *Notifier) SendReport(body string) {
	if n == nil {
		return
	}
	n.send(body)
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := n.api.Send(msg); err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", n.chatID),
			zap.Error(err),
		)
	}
}
