package notify

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"ladder_bot/internal/models"
)

// Commands: то, что бот умеет показывать и делать по командам.
type Commands interface {
	Positions(ctx context.Context) []*models.PositionRecord
	Stats(ctx context.Context) (models.AggregateStats, float64)
	CloseAtMarket(ctx context.Context, instrument string) (models.LedgerEntry, error)
}

// Telegram: уведомления в чат + команды /positions, /stats, /close.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID, log: log.Named("telegram")}, nil
}

func (t *Telegram) Send(_ context.Context, msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		t.log.Warn("telegram send failed", zap.Error(err))
	}
}

// Start: long-polling команд до отмены ctx.
func (t *Telegram) Start(ctx context.Context, cmds Commands) {
	if t == nil || t.bot == nil {
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				msg := upd.Message
				if msg == nil || msg.Chat == nil || msg.Chat.ID != t.chatID || !msg.IsCommand() {
					continue
				}
				go t.Send(ctx, HandleCommand(ctx, cmds, msg.Command(), msg.CommandArguments()))
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if t == nil || t.bot == nil {
		return
	}
	t.bot.StopReceivingUpdates()
}

// HandleCommand: текст ответа на команду.
func HandleCommand(ctx context.Context, cmds Commands, command, args string) string {
	switch command {
	case "positions":
		return FormatPositions(cmds.Positions(ctx))
	case "stats":
		return FormatStats(cmds.Stats(ctx))
	case "close":
		inst := strings.ToUpper(strings.TrimSpace(args))
		if inst == "" {
			return "❗️ Использование: /close SYMBOL"
		}
		e, err := cmds.CloseAtMarket(ctx, inst)
		if err != nil {
			return fmt.Sprintf("❗️ %s: %v", inst, err)
		}
		return FormatEntry(e)
	}
	return "Команды: /positions, /stats, /close SYMBOL"
}
