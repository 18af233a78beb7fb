package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lotbot/lotbot/pkg/auction"
	"github.com/lotbot/lotbot/pkg/domain/conversation"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/money"
)

// handleBidInput resolves a pending bid draft with the typed amount.
// Recoverable rejections keep the draft alive for another attempt;
// terminal ones (item gone, auction closed) clear it.
func (r *Router) handleBidInput(ctx context.Context, msg InboundMessage, draft conversation.PlaceBidDraft) error {
	if msg.From.ID != draft.BidderID {
		return r.msgr.SendText(ctx, msg.ChatID, bidInProgressMsg)
	}
	if isCancel(msg.Text) {
		r.conversations.Clear(msg.ChatID)
		return r.msgr.SendText(ctx, msg.ChatID, "❌ Bid cancelled.")
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return r.msgr.SendText(ctx, msg.ChatID, "Provide your bid in 0.00 format.")
	}

	result, err := r.engine.PlaceBid(ctx, draft.ItemID, msg.From, text)
	if err != nil {
		var bidErr *auction.BidError
		if errors.As(err, &bidErr) {
			if bidErr.Terminal() {
				r.conversations.Clear(msg.ChatID)
			}
			return r.msgr.SendText(ctx, msg.ChatID, bidErr.UserMessage())
		}
		logger.ErrorCF("bot", "bid placement failed", map[string]interface{}{
			"item_id": draft.ItemID,
			"user_id": int64(msg.From.ID),
			"error":   err.Error(),
		})
		return r.msgr.SendText(ctx, msg.ChatID, "Failed to place bid, try again later.")
	}

	r.conversations.Clear(msg.ChatID)
	confirmation := fmt.Sprintf("Bid placed at %s for item #%d.", money.FormatCents(result.AmountCents), draft.ItemID)
	if result.IsNewHighest {
		confirmation += "\n\n🎉 You're now the highest bidder!"
	}
	if err := r.msgr.SendText(ctx, msg.ChatID, confirmation); err != nil {
		return err
	}
	if _, err := r.sendItemCard(ctx, msg.ChatID, draft.ItemID, msg.From.ID); err != nil {
		return err
	}
	return nil
}
