package bot

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Action grammar — "prefix:value" payloads parsed into typed actions at the
// boundary, so the router and engines never see raw strings.
// ---------------------------------------------------------------------------

// ActionKind discriminates parsed inline actions.
type ActionKind string

const (
	ActionMenu                ActionKind = "menu"
	ActionAdmin               ActionKind = "admin"
	ActionPickCategory        ActionKind = "pickcat"
	ActionShowCategory        ActionKind = "cat"
	ActionShowItem            ActionKind = "item"
	ActionMoreImages          ActionKind = "img"
	ActionBackToCategories    ActionKind = "back"
	ActionBid                 ActionKind = "bid"
	ActionFavorite            ActionKind = "fav"
	ActionToggleNotifications ActionKind = "settings"
)

// MenuSection identifies a main-menu destination.
type MenuSection string

const (
	MenuRoot      MenuSection = "root"
	MenuCatalogue MenuSection = "catalogue"
	MenuFavorites MenuSection = "favorites"
	MenuMyBids    MenuSection = "my_bids"
	MenuSettings  MenuSection = "settings"
	MenuAdmin     MenuSection = "admin"
)

// AdminOp identifies an admin-panel operation.
type AdminOp string

const (
	AdminAddCategory    AdminOp = "add_category"
	AdminAddItem        AdminOp = "add_item"
	AdminRemoveItem     AdminOp = "remove_item"
	AdminRemoveCategory AdminOp = "remove_category"
	AdminCloseItem      AdminOp = "close_item"
	AdminBroadcast      AdminOp = "broadcast"
	AdminNotifyNew      AdminOp = "notify_new"
)

// Action is a fully typed inline action. Only the fields relevant to Kind
// are populated.
type Action struct {
	Kind        ActionKind
	Menu        MenuSection
	Admin       AdminOp
	CategoryID  int64
	NewCategory bool // pickcat:new
	ItemID      int64
	Offset      int // image pagination offset
	AddFavorite bool
}

// Error is an action parsing error.
type Error string

func (e Error) Error() string { return string(e) }

// ErrUnknownAction means the payload does not match the action grammar.
const ErrUnknownAction Error = "unknown action"

// ParseAction parses a "prefix:value" callback payload into a typed Action.
func ParseAction(data string) (Action, error) {
	prefix, value, ok := strings.Cut(data, ":")
	if !ok {
		return Action{}, ErrUnknownAction
	}

	switch ActionKind(prefix) {
	case ActionMenu:
		switch MenuSection(value) {
		case MenuRoot, MenuCatalogue, MenuFavorites, MenuMyBids, MenuSettings, MenuAdmin:
			return Action{Kind: ActionMenu, Menu: MenuSection(value)}, nil
		}
	case ActionAdmin:
		switch AdminOp(value) {
		case AdminAddCategory, AdminAddItem, AdminRemoveItem, AdminRemoveCategory,
			AdminCloseItem, AdminBroadcast, AdminNotifyNew:
			return Action{Kind: ActionAdmin, Admin: AdminOp(value)}, nil
		}
	case ActionPickCategory:
		if value == "new" {
			return Action{Kind: ActionPickCategory, NewCategory: true}, nil
		}
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			return Action{Kind: ActionPickCategory, CategoryID: id}, nil
		}
	case ActionShowCategory:
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			return Action{Kind: ActionShowCategory, CategoryID: id}, nil
		}
	case ActionShowItem:
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			return Action{Kind: ActionShowItem, ItemID: id}, nil
		}
	case ActionMoreImages:
		itemText, offsetText, ok := strings.Cut(value, ":")
		if !ok {
			break
		}
		itemID, err := strconv.ParseInt(itemText, 10, 64)
		if err != nil {
			break
		}
		offset, err := strconv.Atoi(offsetText)
		if err != nil || offset < 0 {
			break
		}
		return Action{Kind: ActionMoreImages, ItemID: itemID, Offset: offset}, nil
	case ActionBackToCategories:
		if value == "categories" {
			return Action{Kind: ActionBackToCategories}, nil
		}
	case ActionBid:
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			return Action{Kind: ActionBid, ItemID: id}, nil
		}
	case ActionFavorite:
		op, itemText, ok := strings.Cut(value, ":")
		if !ok {
			break
		}
		itemID, err := strconv.ParseInt(itemText, 10, 64)
		if err != nil {
			break
		}
		switch op {
		case "add":
			return Action{Kind: ActionFavorite, ItemID: itemID, AddFavorite: true}, nil
		case "remove":
			return Action{Kind: ActionFavorite, ItemID: itemID}, nil
		}
	case ActionToggleNotifications:
		if value == "toggle_notifications" {
			return Action{Kind: ActionToggleNotifications}, nil
		}
	}
	return Action{}, ErrUnknownAction
}

// cancelKeyword resets any in-progress draft.
const cancelKeyword = "cancel"

func isCancel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), cancelKeyword)
}
