package bot

import (
	"context"
	"fmt"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/money"
)

// mediaGroupBatch is the transport limit on photos per media group.
const mediaGroupBatch = 10

// viewerContext carries the viewer-specific details shown on an item card.
type viewerContext struct {
	isFavorite  bool
	userBestBid int64
	hasUserBid  bool
}

func (r *Router) buildViewerContext(ctx context.Context, itemID int64, userID domain.UserID) (*viewerContext, error) {
	isFavorite, err := r.store.IsFavorite(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	amount, hasBid, err := r.store.UserBestBid(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	return &viewerContext{isFavorite: isFavorite, userBestBid: amount, hasUserBid: hasBid}, nil
}

// renderItemCard builds the text of an item card.
func renderItemCard(item catalog.Item, best *catalog.BestBid, viewer *viewerContext) string {
	text := fmt.Sprintf("🔨 #%d — %s", item.ID, item.Title)

	if item.Description != "" {
		text += "\n\n" + item.Description
	}
	text += "\n\n💰 Start: " + money.FormatCents(item.StartPriceCents)
	if best != nil {
		text += "\n🏆 Current best: " + money.FormatCents(best.AmountCents)
	}
	if viewer != nil {
		if viewer.hasUserBid {
			text += "\n🎯 Your top bid: " + money.FormatCents(viewer.userBestBid)
		}
		if viewer.isFavorite {
			text += "\n⭐ Saved to favorites"
		}
	}
	if item.IsNew {
		text += "\n🆕 Newly listed"
	}
	status := "OPEN"
	if !item.Open {
		status = "CLOSED"
	}
	return text + "\n📦 Status: " + status
}

// sendItemCard renders and sends the full item presentation: card text,
// action keyboard and the first batch of images. Returns false when the
// item no longer exists.
func (r *Router) sendItemCard(ctx context.Context, chatID domain.ChatID, itemID int64, viewerID domain.UserID) (bool, error) {
	item, err := r.store.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	best, err := r.store.BestBid(ctx, itemID)
	if err != nil {
		return false, err
	}
	viewer, err := r.buildViewerContext(ctx, itemID, viewerID)
	if err != nil {
		return false, err
	}

	text := renderItemCard(*item, best, viewer)
	if err := r.msgr.SendKeyboard(ctx, chatID, text, itemActionKeyboard(*item, viewer)); err != nil {
		return false, err
	}

	images, err := r.store.ListItemImages(ctx, itemID)
	if err != nil {
		return false, err
	}
	if len(images) > 0 {
		next, err := r.sendImagesChunk(ctx, chatID, images, 0)
		if err != nil {
			return false, err
		}
		if next < len(images) {
			remaining := len(images) - next
			prompt := fmt.Sprintf("📷 %d more photo(s) available.", remaining)
			if err := r.msgr.SendKeyboard(ctx, chatID, prompt, moreImagesKeyboard(itemID, next, len(images))); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// sendImagesChunk sends up to one media-group batch starting at offset and
// returns the next offset.
func (r *Router) sendImagesChunk(ctx context.Context, chatID domain.ChatID, images []string, start int) (int, error) {
	if start >= len(images) {
		return start, nil
	}
	end := start + mediaGroupBatch
	if end > len(images) {
		end = len(images)
	}
	if err := r.msgr.SendMediaGroup(ctx, chatID, images[start:end]); err != nil {
		return start, err
	}
	return end, nil
}

func (r *Router) sendFavoritesList(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error {
	favorites, err := r.store.ListFavorites(ctx, userID)
	if err != nil {
		return err
	}
	if len(favorites) == 0 {
		return r.msgr.SendText(ctx, chatID, "⭐ No favorites yet.")
	}
	if err := r.msgr.SendText(ctx, chatID, fmt.Sprintf("⭐ Favorites (%d):", len(favorites))); err != nil {
		return err
	}
	for _, item := range favorites {
		found, err := r.sendItemCard(ctx, chatID, item.ID, userID)
		if err != nil {
			return err
		}
		if !found {
			logger.WarnCF("bot", "favorite item missing while rendering", map[string]interface{}{"item_id": item.ID})
		}
	}
	return nil
}

func (r *Router) sendMyBidsList(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error {
	bids, err := r.store.ListUserBidItems(ctx, userID)
	if err != nil {
		return err
	}
	if len(bids) == 0 {
		return r.msgr.SendText(ctx, chatID, "🪙 You have not placed any bids yet.")
	}
	if err := r.msgr.SendText(ctx, chatID, fmt.Sprintf("🪙 Active bids (%d items):", len(bids))); err != nil {
		return err
	}
	for _, entry := range bids {
		found, err := r.sendItemCard(ctx, chatID, entry.Item.ID, userID)
		if err != nil {
			return err
		}
		if !found {
			logger.WarnCF("bot", "bid item missing while rendering", map[string]interface{}{"item_id": entry.Item.ID})
		}
	}
	return nil
}
