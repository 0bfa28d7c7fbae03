package bot

import (
	"context"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourname/credit-bot/internal/config"
	"github.com/yourname/credit-bot/internal/ledger"
	"github.com/yourname/credit-bot/internal/store"
)

type Handler struct {
	api    *tgbotapi.BotAPI
	cfg    config.Config
	engine *ledger.Engine
	store  store.Store
}

func NewHandler(api *tgbotapi.BotAPI, cfg config.Config, engine *ledger.Engine, st store.Store) *Handler {
	return &Handler{api: api, cfg: cfg, engine: engine, store: st}
}

func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		h.HandleCallback(ctx, upd.CallbackQuery)
		return
	}

	if upd.Message == nil {
		return
	}

	msg := upd.Message
	if !msg.Chat.IsPrivate() {
		return
	}

	username := msg.From.UserName
	if username == "" {
		h.reply(msg.Chat.ID, "Set a Telegram username to use this bot.", false)
		return
	}

	// Refresh the delivery address on every inbound command so
	// settlement notices can reach this user later.
	if err := h.store.SetDeliveryAddress(ctx, username, msg.Chat.ID); err != nil {
		log.Printf("set delivery address: %v", err)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	cmd, args := splitCommand(text)
	switch cmd {
	case "/start":
		h.reply(msg.Chat.ID,
			"Welcome!\n\nCommands:\n"+
				"/pay <username> <amount> — send "+h.cfg.CurrencyName+"\n"+
				"/balance — your balance\n"+
				"/claim — one-time starting grant\n"+
				"/lookup <username> — someone's balance\n"+
				"/supply — circulating supply\n"+
				"/top — richest accounts\n"+
				"/explorer — recent transactions", false)
	case "/pay":
		h.handlePay(ctx, msg.Chat.ID, username, args)
	case "/balance":
		h.handleBalance(ctx, msg.Chat.ID, username)
	case "/claim":
		h.handleClaim(ctx, msg.Chat.ID, username)
	case "/mint":
		h.handleMint(ctx, msg.Chat.ID, username, args)
	case "/burn":
		h.handleBurn(ctx, msg.Chat.ID, username, args)
	case "/lookup":
		h.handleLookup(ctx, msg.Chat.ID, args)
	case "/supply":
		h.handleSupply(ctx, msg.Chat.ID)
	case "/top":
		h.handleTop(ctx, msg.Chat.ID)
	case "/explorer":
		h.handleExplorer(ctx, msg.Chat.ID, args)
	case "/refresh":
		// The delivery address was already refreshed above.
		h.reply(msg.Chat.ID, "Balance refreshed!", false)
	case "/request":
		h.reply(msg.Chat.ID, "This command is no longer supported.", false)
	}
}

func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := fields[0]
	// strip a bot mention like /pay@MyBot
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return cmd, fields[1:]
}

func (h *Handler) reply(chatID int64, text string, markdown bool) {
	m := tgbotapi.NewMessage(chatID, text)
	if markdown {
		m.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := h.api.Send(m); err != nil {
		log.Printf("send to %d: %v", chatID, err)
	}
}

func (h *Handler) sendDM(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("dm to %d: %v", chatID, err)
	}
}
