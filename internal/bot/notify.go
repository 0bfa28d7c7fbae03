package bot

import (
	"context"
	"fmt"
	"log"

	"github.com/yourname/credit-bot/internal/domain"
	"github.com/yourname/credit-bot/internal/ledger"
)

// Handler is the engine's notification sink: settlement and
// cancellation notices go to whichever parties have a known delivery
// address. A missing address is fine.
var _ ledger.Notifier = (*Handler)(nil)

func (h *Handler) NotifySettled(ctx context.Context, s ledger.Settlement) {
	if s.Kind != domain.KindTransfer {
		return
	}
	h.dmByUsername(ctx, s.Receiver,
		fmt.Sprintf("You have received a payment of %d %s from %s.", s.Net, h.cfg.CurrencyName, s.Sender))
	if s.PrivilegedShare > 0 && s.Sender != h.cfg.PrivilegedUser && s.Receiver != h.cfg.PrivilegedUser {
		h.dmByUsername(ctx, h.cfg.PrivilegedUser,
			fmt.Sprintf("Fee share received: %d %s (from %s -> %s).", s.PrivilegedShare, h.cfg.CurrencyName, s.Sender, s.Receiver))
	}
}

func (h *Handler) NotifyCanceled(ctx context.Context, p ledger.Proposal) {
	if p.Kind != domain.KindTransfer {
		return
	}
	h.dmByUsername(ctx, p.Sender,
		fmt.Sprintf("Your payment of %d %s to %s was canceled.", p.Amount, h.cfg.CurrencyName, p.Receiver))
}

func (h *Handler) dmByUsername(ctx context.Context, username, text string) {
	chatID, ok, err := h.store.DeliveryAddress(ctx, username)
	if err != nil {
		log.Printf("delivery address %s: %v", username, err)
		return
	}
	if !ok {
		return
	}
	h.sendDM(chatID, text)
}
