package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/lotbot/lotbot/pkg/auction"
	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/domain/conversation"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/notify"
)

const (
	mainMenuText     = "🤖 What would you like to do?"
	retryLaterText   = "Something went wrong, please try again later."
	adminsOnlyAck    = "🛡️ Admins only."
	notUnderstood    = "I did not understand that. Use the menu buttons or /help."
	helpText         = "/start — open the main menu\n/help — show this help\n\nAll auction features are available from the on-screen menu buttons. Use /start to open the menu again."
	ownerOnlyItem    = "Only the admin who started this item creation can respond."
	ownerOnlyAction  = "Only the admin who started this action can respond."
	bidInProgressMsg = "Another bid is already in progress."
)

// Router maps inbound structured actions to the engines, enforcing
// conversation ownership and admin capability checks.
type Router struct {
	store         catalog.Store
	conversations *conversation.Store
	engine        *auction.Engine
	dispatcher    *notify.Dispatcher
	admins        domain.AdminSet
	msgr          Messenger
	bus           domain.EventBus
}

// NewRouter creates a router over the given collaborators.
func NewRouter(
	store catalog.Store,
	conversations *conversation.Store,
	engine *auction.Engine,
	dispatcher *notify.Dispatcher,
	admins domain.AdminSet,
	msgr Messenger,
	bus domain.EventBus,
) *Router {
	return &Router{
		store:         store,
		conversations: conversations,
		engine:        engine,
		dispatcher:    dispatcher,
		admins:        admins,
		msgr:          msgr,
		bus:           bus,
	}
}

// IsAdmin reports whether the user holds the admin capability.
func (r *Router) IsAdmin(userID domain.UserID) bool { return r.admins.Contains(userID) }

// ---------------------------------------------------------------------------
// Message entry point
// ---------------------------------------------------------------------------

// HandleMessage processes one inbound chat message. All conversation state
// handling for the chat runs under the chat's lock. Unexpected errors abort
// only this action; the user gets a generic retry notice.
func (r *Router) HandleMessage(ctx context.Context, msg InboundMessage) {
	r.conversations.WithChat(msg.ChatID, func() {
		if err := r.handleMessage(ctx, msg); err != nil {
			logger.ErrorCF("bot", "message handling failed", map[string]interface{}{
				"chat_id": int64(msg.ChatID),
				"user_id": int64(msg.From.ID),
				"error":   err.Error(),
			})
			if err := r.msgr.SendText(ctx, msg.ChatID, retryLaterText); err != nil {
				logger.WarnCF("bot", "failed to send error notice", map[string]interface{}{
					"chat_id": int64(msg.ChatID),
					"error":   err.Error(),
				})
			}
		}
	})
}

func (r *Router) handleMessage(ctx context.Context, msg InboundMessage) error {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		return r.handleCommand(ctx, msg, text)
	}

	switch state := r.conversations.Get(msg.ChatID).(type) {
	case conversation.AddItemDraft:
		return r.handleAddItemInput(ctx, msg, state)
	case conversation.PlaceBidDraft:
		return r.handleBidInput(ctx, msg, state)
	case conversation.AddCategoryDraft:
		return r.handleAddCategoryInput(ctx, msg, state)
	case conversation.CloseItemDraft:
		return r.handleCloseItemInput(ctx, msg, state)
	case conversation.RemoveItemDraft:
		return r.handleRemoveItemInput(ctx, msg, state)
	case conversation.RemoveCategoryDraft:
		return r.handleRemoveCategoryInput(ctx, msg, state)
	case conversation.BroadcastDraft:
		return r.handleBroadcastInput(ctx, msg, state)
	default:
		if text == "" {
			return nil
		}
		logger.InfoCF("bot", "idle chat received unrecognized message", map[string]interface{}{
			"chat_id": int64(msg.ChatID),
		})
		return r.msgr.SendText(ctx, msg.ChatID, notUnderstood)
	}
}

func (r *Router) handleCommand(ctx context.Context, msg InboundMessage, text string) error {
	command, _, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")
	switch command {
	case "/start":
		r.conversations.Clear(msg.ChatID)
		if err := r.store.UpsertUser(ctx, msg.From); err != nil {
			return fmt.Errorf("register user: %w", err)
		}
		logger.InfoCF("bot", "received /start command", map[string]interface{}{
			"chat_id": int64(msg.ChatID),
			"user_id": int64(msg.From.ID),
		})
		return r.msgr.SendKeyboard(ctx, msg.ChatID, mainMenuText, mainMenuKeyboard(r.IsAdmin(msg.From.ID)))
	case "/help":
		return r.msgr.SendText(ctx, msg.ChatID, helpText)
	default:
		// Unknown command, leave it to the chat network.
		return nil
	}
}

// ---------------------------------------------------------------------------
// Callback entry point
// ---------------------------------------------------------------------------

// HandleCallback processes one inline-button press and returns the short
// acknowledgment text ("" for a silent ack).
func (r *Router) HandleCallback(ctx context.Context, cb InboundCallback) string {
	if err := r.store.UpsertUser(ctx, cb.From); err != nil {
		logger.WarnCF("bot", "failed to upsert user record", map[string]interface{}{
			"user_id": int64(cb.From.ID),
			"error":   err.Error(),
		})
	}

	action, err := ParseAction(cb.Data)
	if err != nil {
		logger.DebugCF("bot", "ignoring unknown callback payload", map[string]interface{}{
			"user_id": int64(cb.From.ID),
		})
		return ""
	}
	logger.InfoCF("bot", "handling callback action", map[string]interface{}{
		"user_id": int64(cb.From.ID),
		"chat_id": int64(cb.ChatID),
		"action":  string(action.Kind),
	})

	if !cb.HasMessage {
		// Without the originating message there is no chat to act on.
		return ""
	}

	var ack string
	r.conversations.WithChat(cb.ChatID, func() {
		ack, err = r.handleAction(ctx, cb, action)
	})
	if err != nil {
		logger.ErrorCF("bot", "callback handling failed", map[string]interface{}{
			"chat_id": int64(cb.ChatID),
			"user_id": int64(cb.From.ID),
			"error":   err.Error(),
		})
		return retryLaterText
	}
	return ack
}

func (r *Router) handleAction(ctx context.Context, cb InboundCallback, action Action) (string, error) {
	switch action.Kind {
	case ActionMenu:
		return r.handleMenuAction(ctx, cb, action.Menu)
	case ActionAdmin:
		if !r.IsAdmin(cb.From.ID) {
			return adminsOnlyAck, nil
		}
		return r.handleAdminAction(ctx, cb, action.Admin)
	case ActionPickCategory:
		return r.handlePickCategory(ctx, cb, action)
	case ActionShowCategory:
		return r.showCategoryItems(ctx, cb, action.CategoryID)
	case ActionShowItem:
		found, err := r.sendItemCard(ctx, cb.ChatID, action.ItemID, cb.From.ID)
		if err != nil {
			return "", err
		}
		if !found {
			return "❓ Item not found", nil
		}
		return "", nil
	case ActionMoreImages:
		return r.handleMoreImages(ctx, cb, action.ItemID, action.Offset)
	case ActionBackToCategories:
		return "", r.showCategoriesMenu(ctx, cb.ChatID, cb.MessageID)
	case ActionBid:
		return r.handleBidAction(ctx, cb, action.ItemID)
	case ActionFavorite:
		return r.handleFavoriteAction(ctx, cb, action)
	case ActionToggleNotifications:
		return r.handleToggleNotifications(ctx, cb)
	default:
		return "", nil
	}
}

func (r *Router) handleMenuAction(ctx context.Context, cb InboundCallback, section MenuSection) (string, error) {
	switch section {
	case MenuRoot:
		r.conversations.Clear(cb.ChatID)
		return "", r.msgr.EditText(ctx, cb.ChatID, cb.MessageID, mainMenuText, mainMenuKeyboard(r.IsAdmin(cb.From.ID)))
	case MenuCatalogue:
		r.conversations.Clear(cb.ChatID)
		return "", r.showCategoriesMenu(ctx, cb.ChatID, cb.MessageID)
	case MenuFavorites:
		if err := r.sendFavoritesList(ctx, cb.ChatID, cb.From.ID); err != nil {
			return "", err
		}
		return "⭐ Sent your favorites.", nil
	case MenuMyBids:
		if err := r.sendMyBidsList(ctx, cb.ChatID, cb.From.ID); err != nil {
			return "", err
		}
		return "🪙 Sent your bids.", nil
	case MenuSettings:
		r.conversations.Clear(cb.ChatID)
		return "", r.showSettingsMenu(ctx, cb.ChatID, cb.MessageID, cb.From.ID)
	case MenuAdmin:
		if !r.IsAdmin(cb.From.ID) {
			return adminsOnlyAck, nil
		}
		r.conversations.Clear(cb.ChatID)
		return "", r.msgr.EditText(ctx, cb.ChatID, cb.MessageID, "🛡️ Admin panel\n\nChoose an action:", adminMenuKeyboard())
	default:
		return "", nil
	}
}

func (r *Router) handlePickCategory(ctx context.Context, cb InboundCallback, action Action) (string, error) {
	if action.NewCategory {
		if _, ok := r.conversations.Get(cb.ChatID).(conversation.AddItemDraft); !ok {
			r.conversations.Set(cb.ChatID, conversation.NewAddItemDraft(cb.From.ID))
		}
		if err := r.msgr.SendText(ctx, cb.ChatID, "🆕 Send the new category name (or type cancel)."); err != nil {
			return "", err
		}
		return "🆕 Waiting for category name.", nil
	}

	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	for _, category := range categories {
		if category.ID != action.CategoryID {
			continue
		}
		draft, ok := r.conversations.Get(cb.ChatID).(conversation.AddItemDraft)
		if !ok {
			draft = conversation.NewAddItemDraft(cb.From.ID)
		}
		draft.CategoryID = category.ID
		draft.CategoryName = category.Name
		draft.HasCategory = true
		draft.Stage = conversation.StageTitle
		r.conversations.Set(cb.ChatID, draft)
		if err := r.msgr.SendText(ctx, cb.ChatID, "📝 Enter item title:"); err != nil {
			return "", err
		}
		return "🗂️ Category selected.", nil
	}
	return "❓ Category not found", nil
}

func (r *Router) handleMoreImages(ctx context.Context, cb InboundCallback, itemID int64, offset int) (string, error) {
	images, err := r.store.ListItemImages(ctx, itemID)
	if err != nil {
		return "", err
	}
	total := len(images)
	if offset >= total {
		if err := r.msgr.EditText(ctx, cb.ChatID, cb.MessageID, "📷 All images shown.", nil); err != nil {
			return "", err
		}
		return "📷 All images already shown.", nil
	}

	next, err := r.sendImagesChunk(ctx, cb.ChatID, images, offset)
	if err != nil {
		return "", err
	}
	if next < total {
		remaining := total - next
		prompt := fmt.Sprintf("📷 %d more photo(s) available.", remaining)
		if err := r.msgr.EditText(ctx, cb.ChatID, cb.MessageID, prompt, moreImagesKeyboard(itemID, next, total)); err != nil {
			return "", err
		}
	} else if err := r.msgr.EditText(ctx, cb.ChatID, cb.MessageID, "📷 All images shown.", nil); err != nil {
		return "", err
	}
	return "📷 Sent more photos.", nil
}

func (r *Router) handleBidAction(ctx context.Context, cb InboundCallback, itemID int64) (string, error) {
	item, err := r.store.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	switch {
	case item == nil:
		return "❓ Item not found", nil
	case !item.Open:
		return "🔒 Auction is closed", nil
	default:
		r.conversations.Set(cb.ChatID, conversation.PlaceBidDraft{ItemID: itemID, BidderID: cb.From.ID})
		prompt := fmt.Sprintf("Enter your bid for item #%d in 0.00 format:", itemID)
		return "", r.msgr.SendText(ctx, cb.ChatID, prompt)
	}
}

func (r *Router) handleFavoriteAction(ctx context.Context, cb InboundCallback, action Action) (string, error) {
	var ack string
	if action.AddFavorite {
		if err := r.store.AddFavorite(ctx, cb.From.ID, action.ItemID); err != nil {
			return "", err
		}
		ack = "⭐ Added to favorites"
	} else {
		if err := r.store.RemoveFavorite(ctx, cb.From.ID, action.ItemID); err != nil {
			return "", err
		}
		ack = "❌ Removed from favorites"
	}

	item, err := r.store.GetItem(ctx, action.ItemID)
	if err != nil {
		return "", err
	}
	if item != nil {
		viewer, err := r.buildViewerContext(ctx, action.ItemID, cb.From.ID)
		if err != nil {
			return "", err
		}
		if err := r.msgr.EditKeyboard(ctx, cb.ChatID, cb.MessageID, itemActionKeyboard(*item, viewer)); err != nil {
			return "", err
		}
	}
	return ack, nil
}

func (r *Router) handleToggleNotifications(ctx context.Context, cb InboundCallback) (string, error) {
	muted, err := r.store.NotificationsMuted(ctx, cb.From.ID)
	if err != nil {
		return "", err
	}
	next := !muted
	if err := r.store.SetNotificationsMuted(ctx, cb.From.ID, next); err != nil {
		return "", err
	}
	if err := r.showSettingsMenu(ctx, cb.ChatID, cb.MessageID, cb.From.ID); err != nil {
		return "", err
	}
	if next {
		return "🔕 Notifications muted.", nil
	}
	return "🔔 Notifications enabled.", nil
}

// ---------------------------------------------------------------------------
// Menus
// ---------------------------------------------------------------------------

func (r *Router) showCategoriesMenu(ctx context.Context, chatID domain.ChatID, messageID int) error {
	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return r.msgr.EditText(ctx, chatID, messageID, "🗂️ No categories yet. Check back soon.", mainMenuOnlyKeyboard())
	}
	return r.msgr.EditText(ctx, chatID, messageID, "🗂️ Choose a category:", categoriesKeyboard(categories))
}

func (r *Router) showCategoryItems(ctx context.Context, cb InboundCallback, categoryID int64) (string, error) {
	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	var category *catalog.Category
	for i := range categories {
		if categories[i].ID == categoryID {
			category = &categories[i]
			break
		}
	}
	if category == nil {
		return "❓ Category not found", nil
	}

	items, err := r.store.ListItemsByCategory(ctx, categoryID)
	if err != nil {
		return "", err
	}
	bestByItem := make(map[int64]int64, len(items))
	for _, item := range items {
		best, err := r.store.BestBid(ctx, item.ID)
		if err != nil {
			return "", err
		}
		if best != nil {
			bestByItem[item.ID] = best.AmountCents
		}
	}

	text := fmt.Sprintf("🗂️ Category: %s\n🛍️ Select an item:", category.Name)
	if len(items) == 0 {
		text = fmt.Sprintf("🗂️ Category: %s\n📭 No items in this category yet.", category.Name)
	}
	return "", r.msgr.EditText(ctx, cb.ChatID, cb.MessageID, text, itemsKeyboard(items, bestByItem))
}

func (r *Router) showSettingsMenu(ctx context.Context, chatID domain.ChatID, messageID int, userID domain.UserID) error {
	muted, err := r.store.NotificationsMuted(ctx, userID)
	if err != nil {
		return err
	}
	status := "🔔 Notifications are ON"
	if muted {
		status = "🔕 Notifications are OFF"
	}
	text := fmt.Sprintf("⚙️ Settings\n\n%s\nToggle below to control auction updates.", status)
	return r.msgr.EditText(ctx, chatID, messageID, text, settingsMenuKeyboard(muted))
}

func (r *Router) sendCategoryPicker(ctx context.Context, chatID domain.ChatID) error {
	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return r.msgr.SendText(ctx, chatID, "🗂️ No categories yet.\nSend a new category name, or type cancel to stop.")
	}
	return r.msgr.SendKeyboard(ctx, chatID, "🗂️ Choose a category (or tap ➕ New category):", categoryPickerKeyboard(categories))
}
