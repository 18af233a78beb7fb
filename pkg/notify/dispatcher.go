// Package notify implements the notification dispatcher: targeted notices
// and multi-recipient fan-out over the chat transport, tolerant of
// per-recipient failure.
//
// Mute policy: outbid, seller and closure notices honor the per-user mute
// preference; admin broadcasts and new-lots announcements are always sent.
package notify

import (
	"context"
	"fmt"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/money"
)

// Sender delivers a single text message to a chat. Private chats share
// their identity with the user, so recipients are addressed by user id.
type Sender interface {
	SendText(ctx context.Context, chatID domain.ChatID, text string) error
}

// Dispatcher fans notifications out to one or many recipients.
type Dispatcher struct {
	sender Sender
	store  catalog.Store
	bus    domain.EventBus
}

// NewDispatcher creates a dispatcher over the given transport and store.
func NewDispatcher(sender Sender, store catalog.Store, bus domain.EventBus) *Dispatcher {
	return &Dispatcher{sender: sender, store: store, bus: bus}
}

// NotifyOne delivers a single targeted notice.
func (d *Dispatcher) NotifyOne(ctx context.Context, userID domain.UserID, text string) error {
	return d.sender.SendText(ctx, domain.ChatID(userID), text)
}

// Broadcast attempts delivery to every recipient independently and returns
// the number of successful deliveries. A failure for one recipient is
// logged and skipped, never aborting the remaining sends.
func (d *Dispatcher) Broadcast(ctx context.Context, recipients []domain.UserID, text string) int {
	delivered := 0
	for _, userID := range recipients {
		if err := d.sender.SendText(ctx, domain.ChatID(userID), text); err != nil {
			logger.WarnCF("notify", "failed to deliver broadcast", map[string]interface{}{
				"target_user_id": int64(userID),
				"error":          err.Error(),
			})
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastAll sends an admin announcement to every registered user,
// ignoring mute preferences, and returns the delivered count.
func (d *Dispatcher) BroadcastAll(ctx context.Context, text string) (int, error) {
	recipients, err := d.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list broadcast recipients: %w", err)
	}
	delivered := d.Broadcast(ctx, recipients, text)
	d.bus.Publish(domain.NewEvent(domain.EventBroadcastSent, map[string]interface{}{
		"recipients": len(recipients),
		"delivered":  delivered,
	}))
	return delivered, nil
}

// NotifyOutbid tells the previous best bidder their bid was beaten.
// Honors the recipient's mute preference.
func (d *Dispatcher) NotifyOutbid(ctx context.Context, item catalog.Item, previous catalog.BestBid, newAmountCents int64, newBidder catalog.User) error {
	muted, err := d.store.NotificationsMuted(ctx, previous.BidderID)
	if err != nil {
		return fmt.Errorf("read mute flag: %w", err)
	}
	if muted {
		return nil
	}

	text := fmt.Sprintf("⚠️ Your bid of %s on item #%d (%s) was beaten by %s. New highest bid: %s.",
		money.FormatCents(previous.AmountCents), item.ID, item.Title,
		bidderLabel(newBidder), money.FormatCents(newAmountCents))
	return d.NotifyOne(ctx, previous.BidderID, text)
}

// NotifySeller tells the item's seller about a new bid.
// Honors the seller's mute preference.
func (d *Dispatcher) NotifySeller(ctx context.Context, item catalog.Item, bidder catalog.User, amountCents int64) error {
	muted, err := d.store.NotificationsMuted(ctx, item.SellerID)
	if err != nil {
		return fmt.Errorf("read mute flag: %w", err)
	}
	if muted {
		return nil
	}

	name := bidder.Username
	if name == "" {
		name = fmt.Sprintf("%d", int64(bidder.ID))
	}
	text := fmt.Sprintf("New bid on item #%d (%s): @%s offered %s",
		item.ID, item.Title, name, money.FormatCents(amountCents))
	return d.NotifyOne(ctx, item.SellerID, text)
}

// NotifyItemClosed fans the closure notice out to everyone who bid on or
// favorited the item, honoring mute preferences. The winner gets a
// distinct message; with no bids a no-bids variant is sent.
func (d *Dispatcher) NotifyItemClosed(ctx context.Context, item catalog.Item) error {
	winning, err := d.store.BestBid(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("load winning bid: %w", err)
	}
	bidders, err := d.store.ListItemBidderIDs(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("list bidders: %w", err)
	}
	favoriters, err := d.store.ListItemFavoriteUserIDs(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("list favoriters: %w", err)
	}

	seen := make(map[domain.UserID]struct{}, len(bidders)+len(favoriters))
	recipients := make([]domain.UserID, 0, len(bidders)+len(favoriters))
	for _, id := range append(bidders, favoriters...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	if len(recipients) == 0 {
		return nil
	}

	recipients, err = d.store.FilterNotifiable(ctx, recipients)
	if err != nil {
		return fmt.Errorf("filter recipients: %w", err)
	}

	for _, userID := range recipients {
		var text string
		switch {
		case winning != nil && winning.BidderID == userID:
			text = fmt.Sprintf("🏁 Auction closed for item #%d (%s).\n\n🎉 Congratulations! You won with a bid of %s.",
				item.ID, item.Title, money.FormatCents(winning.AmountCents))
		case winning != nil:
			text = fmt.Sprintf("🏁 Auction closed for item #%d (%s).\nFinal price: %s. Thanks for taking part!",
				item.ID, item.Title, money.FormatCents(winning.AmountCents))
		default:
			text = fmt.Sprintf("🏁 Auction closed for item #%d (%s).\nThe item closed with no bids.",
				item.ID, item.Title)
		}
		if err := d.NotifyOne(ctx, userID, text); err != nil {
			logger.WarnCF("notify", "failed to deliver closure notice", map[string]interface{}{
				"item_id": item.ID,
				"user_id": int64(userID),
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// AnnounceNewLots broadcasts a digest of newly listed items to every
// registered user, ignoring mute preferences. Returns the delivered count.
func (d *Dispatcher) AnnounceNewLots(ctx context.Context, items []catalog.Item) (int, error) {
	recipients, err := d.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list announcement recipients: %w", err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	text := "🆕 New lots available!\n\n"
	for _, item := range items {
		text += fmt.Sprintf("• #%d %s — start %s\n", item.ID, item.Title, money.FormatCents(item.StartPriceCents))
	}

	delivered := d.Broadcast(ctx, recipients, text)
	d.bus.Publish(domain.NewEvent(domain.EventNewLotsSent, map[string]interface{}{
		"lots":      len(items),
		"delivered": delivered,
	}))
	return delivered, nil
}

func bidderLabel(user catalog.User) string {
	switch {
	case user.Username != "":
		return "@" + user.Username
	case user.LastName != "":
		return user.FirstName + " " + user.LastName
	default:
		return user.FirstName
	}
}
