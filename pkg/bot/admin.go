package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/domain/conversation"
	"github.com/lotbot/lotbot/pkg/logger"
)

// ---------------------------------------------------------------------------
// Admin panel actions — each sets a single-step draft awaiting one text
// payload, except notify_new which runs immediately.
// ---------------------------------------------------------------------------

func (r *Router) handleAdminAction(ctx context.Context, cb InboundCallback, op AdminOp) (string, error) {
	switch op {
	case AdminAddCategory:
		r.conversations.Set(cb.ChatID, conversation.AddCategoryDraft{AdminID: cb.From.ID})
		if err := r.msgr.SendText(ctx, cb.ChatID, "🆕 Send the new category name (or type cancel):"); err != nil {
			return "", err
		}
		return "🆕 Waiting for category name.", nil

	case AdminAddItem:
		r.conversations.Set(cb.ChatID, conversation.NewAddItemDraft(cb.From.ID))
		if err := r.sendCategoryPicker(ctx, cb.ChatID); err != nil {
			return "", err
		}
		return "📦 Starting item creation.", nil

	case AdminRemoveItem:
		r.conversations.Set(cb.ChatID, conversation.RemoveItemDraft{AdminID: cb.From.ID})
		if err := r.msgr.SendText(ctx, cb.ChatID, "🗑 Send the item ID to remove (or type cancel):"); err != nil {
			return "", err
		}
		return "🗑 Awaiting item ID to remove.", nil

	case AdminRemoveCategory:
		r.conversations.Set(cb.ChatID, conversation.RemoveCategoryDraft{AdminID: cb.From.ID})
		if err := r.msgr.SendText(ctx, cb.ChatID, "🗑 Send the category name to remove (or type cancel):"); err != nil {
			return "", err
		}
		return "🗑 Awaiting category name to remove.", nil

	case AdminCloseItem:
		r.conversations.Set(cb.ChatID, conversation.CloseItemDraft{AdminID: cb.From.ID})
		if err := r.msgr.SendText(ctx, cb.ChatID, "🛑 Send the item ID to close (or type cancel):"); err != nil {
			return "", err
		}
		return "🛑 Awaiting item ID.", nil

	case AdminBroadcast:
		r.conversations.Set(cb.ChatID, conversation.BroadcastDraft{AdminID: cb.From.ID})
		if err := r.msgr.SendText(ctx, cb.ChatID, "📢 Send the announcement text (or type cancel):"); err != nil {
			return "", err
		}
		return "📢 Waiting for announcement text.", nil

	case AdminNotifyNew:
		return r.handleNotifyNewLots(ctx, cb)

	default:
		return "", nil
	}
}

func (r *Router) handleNotifyNewLots(ctx context.Context, cb InboundCallback) (string, error) {
	items, err := r.store.ListNewItems(ctx)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		if err := r.msgr.SendText(ctx, cb.ChatID, "🔔 No new lots to announce."); err != nil {
			return "", err
		}
		return "🔔 No new lots.", nil
	}

	delivered, err := r.dispatcher.AnnounceNewLots(ctx, items)
	if err != nil {
		return "", err
	}
	itemIDs := make([]int64, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}
	if err := r.store.ClearNewItemFlags(ctx, itemIDs); err != nil {
		return "", err
	}
	logger.InfoCF("bot", "announced new lots", map[string]interface{}{
		"lots":      len(items),
		"delivered": delivered,
	})
	report := fmt.Sprintf("🔔 Announced %d new lot(s) to %d user(s).", len(items), delivered)
	if err := r.msgr.SendText(ctx, cb.ChatID, report); err != nil {
		return "", err
	}
	return "🔔 Announcement sent.", nil
}

// ---------------------------------------------------------------------------
// Single-step admin draft inputs
// ---------------------------------------------------------------------------

// guardAdminDraft enforces draft ownership and the cancel keyword. Returns
// true when the caller should stop processing.
func (r *Router) guardAdminDraft(ctx context.Context, msg InboundMessage, adminID domain.UserID, cancelNotice string) (bool, error) {
	if msg.From.ID != adminID {
		return true, r.msgr.SendText(ctx, msg.ChatID, ownerOnlyAction)
	}
	if isCancel(msg.Text) {
		r.conversations.Clear(msg.ChatID)
		return true, r.msgr.SendText(ctx, msg.ChatID, cancelNotice)
	}
	return false, nil
}

func (r *Router) handleAddCategoryInput(ctx context.Context, msg InboundMessage, draft conversation.AddCategoryDraft) error {
	if done, err := r.guardAdminDraft(ctx, msg, draft.AdminID, "❌ Category creation cancelled."); done {
		return err
	}

	name := strings.TrimSpace(msg.Text)
	if name == "" {
		return r.msgr.SendText(ctx, msg.ChatID, "✏️ Send a non-empty category name (or type cancel).")
	}

	existing, err := r.store.FindCategoryByName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		r.conversations.Clear(msg.ChatID)
		return r.msgr.SendText(ctx, msg.ChatID,
			fmt.Sprintf("⚠️ Category already exists: %s (#%d)", existing.Name, existing.ID))
	}

	categoryID, err := r.store.CreateCategory(ctx, name)
	if err != nil {
		return err
	}
	r.conversations.Clear(msg.ChatID)
	r.bus.Publish(domain.NewEvent(domain.EventCategoryCreated, map[string]interface{}{
		"category_id": categoryID,
		"name":        name,
	}))
	logger.InfoCF("bot", "category created", map[string]interface{}{
		"category_id": categoryID,
		"admin_id":    int64(msg.From.ID),
	})
	return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("✅ Category created: %s (#%d)", name, categoryID))
}

func (r *Router) handleCloseItemInput(ctx context.Context, msg InboundMessage, draft conversation.CloseItemDraft) error {
	if done, err := r.guardAdminDraft(ctx, msg, draft.AdminID, "❌ Close cancelled."); done {
		return err
	}

	itemID, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
	if err != nil {
		return r.msgr.SendText(ctx, msg.ChatID, "🔢 Provide a numeric item ID.")
	}

	item, err := r.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		r.conversations.Clear(msg.ChatID)
		return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("❓ Item #%d not found.", itemID))
	}
	if !item.Open {
		// Idempotent: closing a closed item resolves the draft without
		// re-sending closure notifications.
		r.conversations.Clear(msg.ChatID)
		return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("ℹ️ Item #%d is already closed.", itemID))
	}

	if err := r.store.CloseItem(ctx, itemID); err != nil {
		// The item can vanish between the lookup above and the update.
		if errors.Is(err, catalog.ErrItemNotFound) {
			r.conversations.Clear(msg.ChatID)
			return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("❓ Item #%d not found.", itemID))
		}
		return err
	}
	r.conversations.Clear(msg.ChatID)
	item.Open = false

	r.bus.Publish(domain.NewEvent(domain.EventItemClosed, map[string]interface{}{
		"item_id": item.ID,
	}))
	logger.InfoCF("bot", "item closed", map[string]interface{}{
		"item_id":  item.ID,
		"admin_id": int64(msg.From.ID),
	})

	if err := r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("🛑 Item #%d closed.", itemID)); err != nil {
		return err
	}
	if err := r.dispatcher.NotifyItemClosed(ctx, *item); err != nil {
		logger.WarnCF("bot", "closure notification fan-out failed", map[string]interface{}{
			"item_id": item.ID,
			"error":   err.Error(),
		})
	}
	return nil
}

func (r *Router) handleRemoveItemInput(ctx context.Context, msg InboundMessage, draft conversation.RemoveItemDraft) error {
	if done, err := r.guardAdminDraft(ctx, msg, draft.AdminID, "❌ Removal cancelled."); done {
		return err
	}

	itemID, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
	if err != nil {
		return r.msgr.SendText(ctx, msg.ChatID, "🔢 Provide a numeric item ID.")
	}

	removed, err := r.store.DeleteItem(ctx, itemID)
	if err != nil {
		return err
	}
	r.conversations.Clear(msg.ChatID)
	if !removed {
		return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("❓ Item #%d not found.", itemID))
	}

	r.bus.Publish(domain.NewEvent(domain.EventItemRemoved, map[string]interface{}{
		"item_id": itemID,
	}))
	logger.InfoCF("bot", "item removed", map[string]interface{}{
		"item_id":  itemID,
		"admin_id": int64(msg.From.ID),
	})
	return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("🗑 Item #%d removed.", itemID))
}

func (r *Router) handleRemoveCategoryInput(ctx context.Context, msg InboundMessage, draft conversation.RemoveCategoryDraft) error {
	if done, err := r.guardAdminDraft(ctx, msg, draft.AdminID, "❌ Removal cancelled."); done {
		return err
	}

	name := strings.TrimSpace(msg.Text)
	if name == "" {
		return r.msgr.SendText(ctx, msg.ChatID, "✏️ Send a non-empty category name (or type cancel).")
	}

	category, err := r.store.FindCategoryByName(ctx, name)
	if err != nil {
		return err
	}
	if category == nil {
		r.conversations.Clear(msg.ChatID)
		return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("❓ Category not found: %s", name))
	}

	items, err := r.store.ListItemsByCategory(ctx, category.ID)
	if err != nil {
		return err
	}
	removed, err := r.store.DeleteCategory(ctx, category.ID)
	if err != nil {
		return err
	}
	r.conversations.Clear(msg.ChatID)
	if !removed {
		return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("❓ Category not found: %s", name))
	}

	r.bus.Publish(domain.NewEvent(domain.EventCategoryRemoved, map[string]interface{}{
		"category_id": category.ID,
		"name":        category.Name,
		"items":       len(items),
	}))
	logger.InfoCF("bot", "category removed", map[string]interface{}{
		"category_id": category.ID,
		"admin_id":    int64(msg.From.ID),
	})
	return r.msgr.SendText(ctx, msg.ChatID,
		fmt.Sprintf("🗑 Category removed: %s (with %d item(s)).", category.Name, len(items)))
}

func (r *Router) handleBroadcastInput(ctx context.Context, msg InboundMessage, draft conversation.BroadcastDraft) error {
	if done, err := r.guardAdminDraft(ctx, msg, draft.AdminID, "❌ Broadcast cancelled."); done {
		return err
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return r.msgr.SendText(ctx, msg.ChatID, "✏️ Send a non-empty announcement (or type cancel).")
	}

	delivered, err := r.dispatcher.BroadcastAll(ctx, text)
	if err != nil {
		return err
	}
	r.conversations.Clear(msg.ChatID)
	logger.InfoCF("bot", "broadcast delivered", map[string]interface{}{
		"delivered": delivered,
		"admin_id":  int64(msg.From.ID),
	})
	if delivered == 0 {
		return r.msgr.SendText(ctx, msg.ChatID, "📢 No registered users to notify yet.")
	}
	return r.msgr.SendText(ctx, msg.ChatID, fmt.Sprintf("📢 Broadcast sent to %d user(s).", delivered))
}
