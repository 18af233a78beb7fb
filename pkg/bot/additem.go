package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/domain/conversation"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/money"
)

// handleAddItemInput advances the multi-step item creation draft. Photos are
// accepted at every stage; text advances the current stage. Only the admin
// that started the draft may advance it.
func (r *Router) handleAddItemInput(ctx context.Context, msg InboundMessage, draft conversation.AddItemDraft) error {
	if msg.From.ID != draft.OwnerID {
		return r.msgr.SendText(ctx, msg.ChatID, ownerOnlyItem)
	}
	if isCancel(msg.Text) {
		r.conversations.Clear(msg.ChatID)
		return r.msgr.SendText(ctx, msg.ChatID, "❌ Item creation cancelled.")
	}

	if len(msg.PhotoIDs) > 0 {
		added := 0
		for _, fileID := range msg.PhotoIDs {
			if draft.AddImage(fileID) {
				added++
			}
		}
		r.conversations.Set(msg.ChatID, draft)
		if added > 0 {
			notice := fmt.Sprintf("🖼️ Added photo. Total uploaded: %d.", len(draft.Images))
			if err := r.msgr.SendText(ctx, msg.ChatID, notice); err != nil {
				return err
			}
		}
		// A bare photo only attaches; a caption advances the stage as
		// regular text would.
		if strings.TrimSpace(msg.Text) == "" {
			return nil
		}
	}

	text := strings.TrimSpace(msg.Text)
	switch draft.Stage {
	case conversation.StageCategory:
		return r.advanceItemCategory(ctx, msg, draft, text)
	case conversation.StageTitle:
		if text == "" {
			return r.msgr.SendText(ctx, msg.ChatID, "📝 Enter item title:")
		}
		draft.Title = text
		draft.Stage = conversation.StageDescription
		r.conversations.Set(msg.ChatID, draft)
		return r.msgr.SendText(ctx, msg.ChatID, "📝 Enter item description (send - to skip):")
	case conversation.StageDescription:
		if text == "" {
			return r.msgr.SendText(ctx, msg.ChatID, "📝 Enter item description (send - to skip):")
		}
		if text != "-" {
			draft.Description = text
		}
		draft.Stage = conversation.StageStartPrice
		r.conversations.Set(msg.ChatID, draft)
		return r.msgr.SendText(ctx, msg.ChatID, "💰 Enter the start price in 0.00 format:")
	case conversation.StageStartPrice:
		return r.finishItemDraft(ctx, msg, draft, text)
	default:
		r.conversations.Clear(msg.ChatID)
		return r.msgr.SendText(ctx, msg.ChatID, "❌ Item creation cancelled.")
	}
}

// advanceItemCategory resolves a typed category name, creating the category
// if needed, and moves the draft to the title stage.
func (r *Router) advanceItemCategory(ctx context.Context, msg InboundMessage, draft conversation.AddItemDraft, name string) error {
	if name == "" {
		return r.sendCategoryPicker(ctx, msg.ChatID)
	}

	category, existed, err := catalog.EnsureCategory(ctx, r.store, name)
	if err != nil {
		return err
	}
	if !existed {
		r.bus.Publish(domain.NewEvent(domain.EventCategoryCreated, map[string]interface{}{
			"category_id": category.ID,
			"name":        category.Name,
		}))
		if err := r.msgr.SendText(ctx, msg.ChatID,
			fmt.Sprintf("✅ Category created: %s (#%d)", category.Name, category.ID)); err != nil {
			return err
		}
	}

	draft.CategoryID = category.ID
	draft.CategoryName = category.Name
	draft.HasCategory = true
	draft.Stage = conversation.StageTitle
	r.conversations.Set(msg.ChatID, draft)
	return r.msgr.SendText(ctx, msg.ChatID, "📝 Enter item title:")
}

// finishItemDraft parses the start price and persists the item.
func (r *Router) finishItemDraft(ctx context.Context, msg InboundMessage, draft conversation.AddItemDraft, text string) error {
	priceCents, err := money.ParseCents(text)
	if err != nil {
		return r.msgr.SendText(ctx, msg.ChatID,
			"⚠️ Invalid price: use the 0.00 format (e.g. 150 or 150.50). Try again or type cancel.")
	}

	itemID, err := r.store.CreateItem(ctx, catalog.NewItem{
		SellerID:        draft.OwnerID,
		CategoryID:      draft.CategoryID,
		Title:           draft.Title,
		Description:     draft.Description,
		StartPriceCents: priceCents,
		Images:          draft.Images,
	})
	if err != nil {
		return err
	}
	r.conversations.Clear(msg.ChatID)

	r.bus.Publish(domain.NewEvent(domain.EventItemCreated, map[string]interface{}{
		"item_id":     itemID,
		"category_id": draft.CategoryID,
		"seller_id":   int64(draft.OwnerID),
	}))
	logger.InfoCF("bot", "item created", map[string]interface{}{
		"item_id":  itemID,
		"admin_id": int64(msg.From.ID),
		"images":   len(draft.Images),
	})

	if err := r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("Item created: #%d", itemID)); err != nil {
		return err
	}
	if _, err := r.sendItemCard(ctx, msg.ChatID, itemID, msg.From.ID); err != nil {
		return err
	}
	return nil
}
