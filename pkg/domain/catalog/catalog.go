// Package catalog defines the auction catalog bounded context: categories,
// items, bids, favorites and user records, plus the Store interface that
// persistence adapters implement.
package catalog

import (
	"context"
	"time"

	"github.com/lotbot/lotbot/pkg/domain"
)

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// User is a registered chat user. Users are upserted on first contact.
type User struct {
	ID        domain.UserID `json:"id"`
	Username  string        `json:"username,omitempty"`
	FirstName string        `json:"first_name,omitempty"`
	LastName  string        `json:"last_name,omitempty"`
}

// Category groups items. Names are unique case-insensitively.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Item is an auction lot. Open transitions true→false exactly once.
type Item struct {
	ID              int64         `json:"id"`
	SellerID        domain.UserID `json:"seller_id"`
	CategoryID      int64         `json:"category_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	StartPriceCents int64         `json:"start_price_cents"`
	Open            bool          `json:"open"`
	IsNew           bool          `json:"is_new"`
	CreatedAt       time.Time     `json:"created_at"`
}

// NewItem carries the fields required to create an item.
// Images is the ordered list of opaque media references.
type NewItem struct {
	SellerID        domain.UserID
	CategoryID      int64
	Title           string
	Description     string
	StartPriceCents int64
	Images          []string
}

// Bid is an accepted bid on an item.
type Bid struct {
	ID          int64         `json:"id"`
	ItemID      int64         `json:"item_id"`
	BidderID    domain.UserID `json:"bidder_id"`
	AmountCents int64         `json:"amount_cents"`
	CreatedAt   time.Time     `json:"created_at"`
}

// BestBid is the current highest bid for an item together with its bidder.
// Ties on amount are broken by earliest creation time.
type BestBid struct {
	BidderID    domain.UserID `json:"bidder_id"`
	AmountCents int64         `json:"amount_cents"`
}

// ---------------------------------------------------------------------------
// Store interface — the persistence boundary
// ---------------------------------------------------------------------------

// Store is the persistent catalog collaborator. All methods are safe for
// concurrent use. Implementations live under pkg/infrastructure.
type Store interface {
	// Users
	UpsertUser(ctx context.Context, user User) error
	ListUserIDs(ctx context.Context) ([]domain.UserID, error)
	NotificationsMuted(ctx context.Context, userID domain.UserID) (bool, error)
	SetNotificationsMuted(ctx context.Context, userID domain.UserID, muted bool) error
	// FilterNotifiable returns the subset of ids whose notifications are
	// not muted, preserving input order.
	FilterNotifiable(ctx context.Context, ids []domain.UserID) ([]domain.UserID, error)

	// Categories
	ListCategories(ctx context.Context) ([]Category, error)
	FindCategoryByName(ctx context.Context, name string) (*Category, error)
	CreateCategory(ctx context.Context, name string) (int64, error)
	// DeleteCategory removes a category and everything under it.
	// Returns false if no such category existed.
	DeleteCategory(ctx context.Context, categoryID int64) (bool, error)

	// Items
	CreateItem(ctx context.Context, item NewItem) (int64, error)
	GetItem(ctx context.Context, itemID int64) (*Item, error)
	ListItemsByCategory(ctx context.Context, categoryID int64) ([]Item, error)
	ListItemImages(ctx context.Context, itemID int64) ([]string, error)
	ListNewItems(ctx context.Context) ([]Item, error)
	ClearNewItemFlags(ctx context.Context, itemIDs []int64) error
	// CloseItem marks an item closed. Returns ErrItemNotFound if no such
	// item exists.
	CloseItem(ctx context.Context, itemID int64) error
	// DeleteItem removes an item with its bids and favorites.
	// Returns false if no such item existed.
	DeleteItem(ctx context.Context, itemID int64) (bool, error)

	// Bids
	InsertBid(ctx context.Context, itemID int64, bidderID domain.UserID, amountCents int64) (int64, error)
	BestBid(ctx context.Context, itemID int64) (*BestBid, error)
	UserBestBid(ctx context.Context, itemID int64, userID domain.UserID) (int64, bool, error)
	ListItemBidderIDs(ctx context.Context, itemID int64) ([]domain.UserID, error)
	// ListUserBidItems returns the distinct items the user has bid on,
	// paired with the user's highest amount per item.
	ListUserBidItems(ctx context.Context, userID domain.UserID) ([]UserBidItem, error)

	// Favorites
	AddFavorite(ctx context.Context, userID domain.UserID, itemID int64) error
	RemoveFavorite(ctx context.Context, userID domain.UserID, itemID int64) error
	IsFavorite(ctx context.Context, userID domain.UserID, itemID int64) (bool, error)
	ListFavorites(ctx context.Context, userID domain.UserID) ([]Item, error)
	ListItemFavoriteUserIDs(ctx context.Context, itemID int64) ([]domain.UserID, error)
}

// UserBidItem pairs an item with the user's best amount on it.
type UserBidItem struct {
	Item        Item  `json:"item"`
	AmountCents int64 `json:"amount_cents"`
}

// ---------------------------------------------------------------------------
// Ensure semantics
// ---------------------------------------------------------------------------

// EnsureCategory returns the category with the given name, creating it if
// missing. The lookup is case-insensitive. The second return value reports
// whether the category already existed.
func EnsureCategory(ctx context.Context, store Store, name string) (Category, bool, error) {
	existing, err := store.FindCategoryByName(ctx, name)
	if err != nil {
		return Category{}, false, err
	}
	if existing != nil {
		return *existing, true, nil
	}
	id, err := store.CreateCategory(ctx, name)
	if err != nil {
		return Category{}, false, err
	}
	return Category{ID: id, Name: name}, false, nil
}

// ---------------------------------------------------------------------------
// Domain errors
// ---------------------------------------------------------------------------

// Error is a catalog domain error.
type Error string

func (e Error) Error() string { return string(e) }

// ErrItemNotFound means no item exists with the requested id.
const ErrItemNotFound Error = "item not found"
