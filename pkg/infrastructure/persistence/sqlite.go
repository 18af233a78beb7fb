// Package persistence provides the SQLite-backed implementation of the
// catalog store. This is the infrastructure adapter for catalog.Store.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                     INTEGER PRIMARY KEY,
	username               TEXT,
	first_name             TEXT,
	last_name              TEXT,
	notifications_disabled INTEGER NOT NULL DEFAULT 0,
	created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS categories (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE
);

CREATE TABLE IF NOT EXISTS items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	seller_id   INTEGER NOT NULL,
	category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT,
	start_price INTEGER NOT NULL CHECK (start_price >= 0),
	is_open     INTEGER NOT NULL DEFAULT 1,
	is_new      INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS item_images (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id  INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	file_id  TEXT NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bids (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id    INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	bidder_id  INTEGER NOT NULL,
	amount     INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS favorites (
	user_id    INTEGER NOT NULL,
	item_id    INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_id);
CREATE INDEX IF NOT EXISTS idx_bids_item ON bids(item_id);
CREATE INDEX IF NOT EXISTS idx_favorites_item ON favorites(item_id);
`

// SQLiteStore is the SQLite implementation of catalog.Store.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog database at path and
// applies the schema. Pass ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *SQLiteStore) UpsertUser(ctx context.Context, user catalog.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name`,
		int64(user.ID), user.Username, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", user.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []domain.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, domain.UserID(id))
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) NotificationsMuted(ctx context.Context, userID domain.UserID) (bool, error) {
	var muted bool
	err := s.db.QueryRowContext(ctx,
		`SELECT notifications_disabled FROM users WHERE id = ?`, int64(userID)).Scan(&muted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read mute flag for user %d: %w", userID, err)
	}
	return muted, nil
}

func (s *SQLiteStore) SetNotificationsMuted(ctx context.Context, userID domain.UserID, muted bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET notifications_disabled = ? WHERE id = ?`, muted, int64(userID))
	if err != nil {
		return fmt.Errorf("set mute flag for user %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) FilterNotifiable(ctx context.Context, ids []domain.UserID) ([]domain.UserID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM users WHERE notifications_disabled = 1 AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("filter notifiable users: %w", err)
	}
	defer rows.Close()

	muted := make(map[domain.UserID]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		muted[domain.UserID(id)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	allowed := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		if _, ok := muted[id]; !ok {
			allowed = append(allowed, id)
		}
	}
	return allowed, nil
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *SQLiteStore) FindCategoryByName(ctx context.Context, name string) (*catalog.Category, error) {
	var c catalog.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE name = ? COLLATE NOCASE LIMIT 1`, name).
		Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category %q: %w", name, err)
	}
	return &c, nil
}

func (s *SQLiteStore) CreateCategory(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create category %q: %w", name, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, categoryID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, categoryID)
	if err != nil {
		return false, fmt.Errorf("delete category %d: %w", categoryID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

const itemColumns = `id, seller_id, category_id, title, COALESCE(description, ''), start_price, is_open, is_new, created_at`

func scanItem(row interface{ Scan(...interface{}) error }) (catalog.Item, error) {
	var (
		item     catalog.Item
		sellerID int64
		created  time.Time
	)
	err := row.Scan(&item.ID, &sellerID, &item.CategoryID, &item.Title,
		&item.Description, &item.StartPriceCents, &item.Open, &item.IsNew, &created)
	if err != nil {
		return catalog.Item{}, err
	}
	item.SellerID = domain.UserID(sellerID)
	item.CreatedAt = created
	return item, nil
}

func (s *SQLiteStore) CreateItem(ctx context.Context, item catalog.NewItem) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create item: %w", err)
	}
	defer tx.Rollback()

	var description interface{}
	if item.Description != "" {
		description = item.Description
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO items (seller_id, category_id, title, description, start_price, is_new)
		VALUES (?, ?, ?, ?, ?, 1)`,
		int64(item.SellerID), item.CategoryID, item.Title, description, item.StartPriceCents)
	if err != nil {
		return 0, fmt.Errorf("create item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for position, fileID := range item.Images {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item_images (item_id, file_id, position) VALUES (?, ?, ?)`,
			id, fileID, position); err != nil {
			return 0, fmt.Errorf("store item image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create item: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, itemID int64) (*catalog.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", itemID, err)
	}
	return &item, nil
}

func (s *SQLiteStore) ListItemsByCategory(ctx context.Context, categoryID int64) ([]catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE category_id = ? ORDER BY created_at DESC, id DESC`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("list items for category %d: %w", categoryID, err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *SQLiteStore) ListItemImages(ctx context.Context, itemID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id FROM item_images WHERE item_id = ? ORDER BY position ASC, id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list images for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var images []string
	for rows.Next() {
		var fileID string
		if err := rows.Scan(&fileID); err != nil {
			return nil, err
		}
		images = append(images, fileID)
	}
	return images, rows.Err()
}

func (s *SQLiteStore) ListNewItems(ctx context.Context) ([]catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE is_new = 1 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list new items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *SQLiteStore) ClearNewItemFlags(ctx context.Context, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	args := make([]interface{}, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET is_new = 0 WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("clear new item flags: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CloseItem(ctx context.Context, itemID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET is_open = 0 WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("close item %d: %w", itemID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return catalog.ErrItemNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, itemID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, itemID)
	if err != nil {
		return false, fmt.Errorf("delete item %d: %w", itemID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ---------------------------------------------------------------------------
// Bids
// ---------------------------------------------------------------------------

func (s *SQLiteStore) InsertBid(ctx context.Context, itemID int64, bidderID domain.UserID, amountCents int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bids (item_id, bidder_id, amount) VALUES (?, ?, ?)`,
		itemID, int64(bidderID), amountCents)
	if err != nil {
		return 0, fmt.Errorf("insert bid on item %d: %w", itemID, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) BestBid(ctx context.Context, itemID int64) (*catalog.BestBid, error) {
	var (
		bidderID int64
		amount   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT bidder_id, amount FROM bids
		WHERE item_id = ?
		ORDER BY amount DESC, created_at ASC, id ASC
		LIMIT 1`, itemID).Scan(&bidderID, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("best bid for item %d: %w", itemID, err)
	}
	return &catalog.BestBid{BidderID: domain.UserID(bidderID), AmountCents: amount}, nil
}

func (s *SQLiteStore) UserBestBid(ctx context.Context, itemID int64, userID domain.UserID) (int64, bool, error) {
	var amount int64
	err := s.db.QueryRowContext(ctx, `
		SELECT amount FROM bids
		WHERE item_id = ? AND bidder_id = ?
		ORDER BY amount DESC LIMIT 1`, itemID, int64(userID)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("user best bid for item %d: %w", itemID, err)
	}
	return amount, true, nil
}

func (s *SQLiteStore) ListItemBidderIDs(ctx context.Context, itemID int64) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT bidder_id FROM bids WHERE item_id = ?`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list bidders for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var ids []domain.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, domain.UserID(id))
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) ListUserBidItems(ctx context.Context, userID domain.UserID) ([]catalog.UserBidItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedItemColumns("i")+`, MAX(b.amount)
		FROM bids b
		INNER JOIN items i ON i.id = b.item_id
		WHERE b.bidder_id = ?
		GROUP BY b.item_id
		ORDER BY b.item_id`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("list bid items for user %d: %w", userID, err)
	}
	defer rows.Close()

	var result []catalog.UserBidItem
	for rows.Next() {
		var (
			item     catalog.Item
			sellerID int64
			created  time.Time
			amount   int64
		)
		err := rows.Scan(&item.ID, &sellerID, &item.CategoryID, &item.Title,
			&item.Description, &item.StartPriceCents, &item.Open, &item.IsNew, &created, &amount)
		if err != nil {
			return nil, err
		}
		item.SellerID = domain.UserID(sellerID)
		item.CreatedAt = created
		result = append(result, catalog.UserBidItem{Item: item, AmountCents: amount})
	}
	return result, rows.Err()
}

// ---------------------------------------------------------------------------
// Favorites
// ---------------------------------------------------------------------------

func (s *SQLiteStore) AddFavorite(ctx context.Context, userID domain.UserID, itemID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (user_id, item_id) VALUES (?, ?)
		ON CONFLICT (user_id, item_id) DO NOTHING`, int64(userID), itemID)
	if err != nil {
		return fmt.Errorf("add favorite (%d, %d): %w", userID, itemID, err)
	}
	return nil
}

func (s *SQLiteStore) RemoveFavorite(ctx context.Context, userID domain.UserID, itemID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND item_id = ?`, int64(userID), itemID)
	if err != nil {
		return fmt.Errorf("remove favorite (%d, %d): %w", userID, itemID, err)
	}
	return nil
}

func (s *SQLiteStore) IsFavorite(ctx context.Context, userID domain.UserID, itemID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = ? AND item_id = ?)`,
		int64(userID), itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check favorite (%d, %d): %w", userID, itemID, err)
	}
	return exists, nil
}

func (s *SQLiteStore) ListFavorites(ctx context.Context, userID domain.UserID) ([]catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedItemColumns("i")+`
		FROM favorites f
		INNER JOIN items i ON i.id = f.item_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("list favorites for user %d: %w", userID, err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *SQLiteStore) ListItemFavoriteUserIDs(ctx context.Context, itemID int64) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM favorites WHERE item_id = ?`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list favoriters for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var ids []domain.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, domain.UserID(id))
	}
	return ids, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func prefixedItemColumns(alias string) string {
	cols := []string{"id", "seller_id", "category_id", "title"}
	out := make([]string, 0, 9)
	for _, c := range cols {
		out = append(out, alias+"."+c)
	}
	out = append(out, "COALESCE("+alias+".description, '')",
		alias+".start_price", alias+".is_open", alias+".is_new", alias+".created_at")
	return strings.Join(out, ", ")
}

func collectItems(rows *sql.Rows) ([]catalog.Item, error) {
	var items []catalog.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Verify interface compliance at compile time.
var _ catalog.Store = (*SQLiteStore)(nil)
