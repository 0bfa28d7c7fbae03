package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourname/credit-bot/internal/domain"
	"github.com/yourname/credit-bot/internal/ledger"
)

func (h *Handler) HandleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := h.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Printf("answer callback: %v", err)
	}
	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID

	action, rawID, ok := strings.Cut(q.Data, "_")
	if !ok {
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return
	}

	switch action {
	case "confirm":
		h.handleConfirm(ctx, chatID, q.Message.MessageID, id)
	case "cancel":
		h.handleCancel(ctx, chatID, q.Message.MessageID, id)
	case "explorer":
		h.sendExplorerPage(ctx, chatID, int(id))
	}
}

func (h *Handler) handleConfirm(ctx context.Context, chatID int64, messageID int, id int64) {
	s, err := h.engine.Confirm(ctx, id)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		h.reply(chatID, "This transaction was already confirmed or canceled.", false)
		return
	case errors.Is(err, ledger.ErrInsufficientFunds):
		// The proposal was consumed but nothing settled; this is not a
		// success and must read differently from one.
		h.removeMessage(chatID, messageID)
		h.reply(chatID, "Confirmation failed: insufficient balance. No funds were moved.", false)
		return
	case err != nil:
		log.Printf("confirm %d: %v", id, err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}

	h.removeMessage(chatID, messageID)
	h.reply(chatID, h.settlementText(s), false)
}

func (h *Handler) handleCancel(ctx context.Context, chatID int64, messageID int, id int64) {
	_, err := h.engine.Cancel(ctx, id)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		h.reply(chatID, "This transaction was already confirmed or canceled.", false)
		return
	case err != nil:
		log.Printf("cancel %d: %v", id, err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}

	h.removeMessage(chatID, messageID)
	h.reply(chatID, "Payment canceled!", false)
}

func (h *Handler) removeMessage(chatID int64, messageID int) {
	if _, err := h.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Printf("delete message %d: %v", messageID, err)
	}
}

func (h *Handler) settlementText(s ledger.Settlement) string {
	switch s.Kind {
	case domain.KindMint:
		return fmt.Sprintf("Minted %d %s!", s.Net, h.cfg.CurrencyName)
	case domain.KindBurn:
		return fmt.Sprintf("Burned %d %s!", s.Burned, h.cfg.CurrencyName)
	default:
		text := fmt.Sprintf("Payment of %d %s to %s confirmed!\nSender: %s\nReceiver: %s\nNet amount: %d %s",
			s.Gross, h.cfg.CurrencyName, s.Receiver, s.Sender, s.Receiver, s.Net, h.cfg.CurrencyName)
		if s.PrivilegedShare > 0 || s.Burned > 0 {
			text += fmt.Sprintf("\nFee: %d burned, %d to %s",
				s.Burned, s.PrivilegedShare, h.cfg.PrivilegedUser)
		}
		return text
	}
}
