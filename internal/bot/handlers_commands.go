package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourname/credit-bot/internal/ledger"
)

const explorerPageSize = 10

func (h *Handler) handlePay(ctx context.Context, chatID int64, sender string, args []string) {
	if len(args) != 2 {
		h.reply(chatID, "Usage: /pay <username> <amount>", false)
		return
	}
	receiver := strings.TrimPrefix(args[0], "@")
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		h.reply(chatID, "Amount must be a whole number.", false)
		return
	}

	prop, err := h.engine.ProposeTransfer(ctx, sender, receiver, amount)
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		h.reply(chatID, "Amount must be positive.", false)
		return
	case errors.Is(err, ledger.ErrInsufficientFunds):
		h.reply(chatID, "Insufficient balance!", false)
		return
	case err != nil:
		log.Printf("propose transfer: %v", err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}

	h.sendProposal(chatID, prop,
		fmt.Sprintf("Confirm payment of %d %s to %s?", prop.Amount, h.cfg.CurrencyName, receiver))
}

func (h *Handler) handleBalance(ctx context.Context, chatID int64, username string) {
	bal, err := h.engine.Balance(ctx, username)
	if err != nil {
		log.Printf("balance %s: %v", username, err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}
	h.reply(chatID, fmt.Sprintf("Your balance is %d %s.", bal, h.cfg.CurrencyName), false)
}

func (h *Handler) handleClaim(ctx context.Context, chatID int64, username string) {
	s, err := h.engine.Claim(ctx, username)
	switch {
	case errors.Is(err, ledger.ErrAlreadyClaimed):
		h.reply(chatID, fmt.Sprintf("You have already claimed your %d %s!", h.cfg.ClaimAmount, h.cfg.CurrencyName), false)
		return
	case err != nil:
		log.Printf("claim %s: %v", username, err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}
	h.reply(chatID, fmt.Sprintf("Claimed %d %s!", s.Net, h.cfg.CurrencyName), false)
}

func (h *Handler) handleMint(ctx context.Context, chatID int64, username string, args []string) {
	if len(args) != 1 {
		h.reply(chatID, "Usage: /mint <amount>", false)
		return
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(chatID, "Amount must be a whole number.", false)
		return
	}

	prop, err := h.engine.ProposeMint(ctx, username, amount)
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		h.reply(chatID, "You are not authorized to use this command.", false)
		return
	case errors.Is(err, ledger.ErrInvalidAmount):
		h.reply(chatID, "Amount must be positive.", false)
		return
	case err != nil:
		log.Printf("propose mint: %v", err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}

	h.sendProposal(chatID, prop,
		fmt.Sprintf("Mint %d %s?", prop.Amount, h.cfg.CurrencyName))
}

func (h *Handler) handleBurn(ctx context.Context, chatID int64, username string, args []string) {
	if len(args) != 1 {
		h.reply(chatID, "Usage: /burn <amount>", false)
		return
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(chatID, "Amount must be a whole number.", false)
		return
	}

	prop, err := h.engine.ProposeBurn(ctx, username, amount)
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		h.reply(chatID, "You are not authorized to use this command.", false)
		return
	case errors.Is(err, ledger.ErrInvalidAmount):
		h.reply(chatID, "Amount must be positive.", false)
		return
	case errors.Is(err, ledger.ErrInsufficientFunds):
		h.reply(chatID, "Insufficient balance!", false)
		return
	case err != nil:
		log.Printf("propose burn: %v", err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}

	h.sendProposal(chatID, prop,
		fmt.Sprintf("Burn %d %s?", prop.Amount, h.cfg.CurrencyName))
}

func (h *Handler) sendProposal(chatID int64, prop ledger.Proposal, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm", fmt.Sprintf("confirm_%d", prop.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", fmt.Sprintf("cancel_%d", prop.ID)),
		),
	)
	if _, err := h.api.Send(m); err != nil {
		log.Printf("send proposal to %d: %v", chatID, err)
	}
}

func (h *Handler) handleLookup(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		h.reply(chatID, "Usage: /lookup <username>", false)
		return
	}
	username := strings.TrimPrefix(args[0], "@")

	bal, err := h.engine.Lookup(ctx, username)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		h.reply(chatID, "User not found.", false)
		return
	case err != nil:
		log.Printf("lookup %s: %v", username, err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}
	h.reply(chatID, fmt.Sprintf("User: %s\nBalance: %d %s", username, bal, h.cfg.CurrencyName), false)
}

func (h *Handler) handleSupply(ctx context.Context, chatID int64) {
	total, err := h.engine.TotalSupply(ctx)
	if err != nil {
		log.Printf("total supply: %v", err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}
	burned, err := h.engine.BurnedSupply(ctx)
	if err != nil {
		log.Printf("burned supply: %v", err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}
	h.reply(chatID, fmt.Sprintf("Total supply of %s: %d.\nBurned so far: %d.", h.cfg.CurrencyName, total, burned), false)
}

func (h *Handler) handleTop(ctx context.Context, chatID int64) {
	top, err := h.engine.Top(ctx, 10)
	if err != nil {
		log.Printf("top: %v", err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}
	if len(top) == 0 {
		h.reply(chatID, "No users found.", false)
		return
	}

	var b strings.Builder
	b.WriteString("Top users by balance:\n\n")
	for i, a := range top {
		fmt.Fprintf(&b, "%d. %s: %d %s\n", i+1, a.Username, a.Balance, h.cfg.CurrencyName)
	}
	h.reply(chatID, b.String(), false)
}

func (h *Handler) handleExplorer(ctx context.Context, chatID int64, args []string) {
	offset := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			h.reply(chatID, "Usage: /explorer [offset]", false)
			return
		}
		offset = n
	}
	h.sendExplorerPage(ctx, chatID, offset)
}

func (h *Handler) sendExplorerPage(ctx context.Context, chatID int64, offset int) {
	txs, err := h.engine.Recent(ctx, explorerPageSize, offset)
	if err != nil {
		log.Printf("recent: %v", err)
		h.reply(chatID, "Something went wrong, try again.", false)
		return
	}
	if len(txs) == 0 {
		h.reply(chatID, "No more transactions available.", false)
		return
	}

	var b strings.Builder
	b.WriteString("Recent transactions:\n\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "%s: %s -> %s | %d %s\n",
			t.Timestamp.Format("2006-01-02 15:04:05"),
			t.Sender, t.Receiver, t.Amount, h.cfg.CurrencyName)
	}

	m := tgbotapi.NewMessage(chatID, b.String())
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Load more", fmt.Sprintf("explorer_%d", offset+explorerPageSize)),
		),
	)
	if _, err := h.api.Send(m); err != nil {
		log.Printf("send explorer to %d: %v", chatID, err)
	}
}
