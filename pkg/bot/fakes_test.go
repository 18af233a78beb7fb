package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
)

// fakeStore is an in-memory catalog.Store for router tests.
type fakeStore struct {
	mu             sync.Mutex
	users          map[domain.UserID]catalog.User
	muted          map[domain.UserID]bool
	categories     map[int64]catalog.Category
	items          map[int64]catalog.Item
	images         map[int64][]string
	bids           []catalog.Bid
	favorites      map[string]struct{}
	nextCategoryID int64
	nextItemID     int64
	nextBidID      int64

	failInsertBid bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[domain.UserID]catalog.User),
		muted:      make(map[domain.UserID]bool),
		categories: make(map[int64]catalog.Category),
		items:      make(map[int64]catalog.Item),
		images:     make(map[int64][]string),
		favorites:  make(map[string]struct{}),
	}
}

var _ catalog.Store = (*fakeStore)(nil)

func favKey(userID domain.UserID, itemID int64) string {
	return fmt.Sprintf("%d:%d", int64(userID), itemID)
}

func (s *fakeStore) UpsertUser(_ context.Context, user catalog.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *fakeStore) ListUserIDs(_ context.Context) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]domain.UserID, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *fakeStore) NotificationsMuted(_ context.Context, userID domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted[userID], nil
}

func (s *fakeStore) SetNotificationsMuted(_ context.Context, userID domain.UserID, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted[userID] = muted
	return nil
}

func (s *fakeStore) FilterNotifiable(_ context.Context, ids []domain.UserID) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		if !s.muted[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *fakeStore) ListCategories(_ context.Context) ([]catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) FindCategoryByName(_ context.Context, name string) (*catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateCategory(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCategoryID++
	s.categories[s.nextCategoryID] = catalog.Category{ID: s.nextCategoryID, Name: name}
	return s.nextCategoryID, nil
}

func (s *fakeStore) DeleteCategory(_ context.Context, categoryID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[categoryID]; !ok {
		return false, nil
	}
	delete(s.categories, categoryID)
	for id, item := range s.items {
		if item.CategoryID == categoryID {
			delete(s.items, id)
		}
	}
	return true, nil
}

func (s *fakeStore) CreateItem(_ context.Context, item catalog.NewItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextItemID++
	s.items[s.nextItemID] = catalog.Item{
		ID:              s.nextItemID,
		SellerID:        item.SellerID,
		CategoryID:      item.CategoryID,
		Title:           item.Title,
		Description:     item.Description,
		StartPriceCents: item.StartPriceCents,
		Open:            true,
		IsNew:           true,
		CreatedAt:       time.Now(),
	}
	s.images[s.nextItemID] = append([]string(nil), item.Images...)
	return s.nextItemID, nil
}

func (s *fakeStore) GetItem(_ context.Context, itemID int64) (*catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *fakeStore) ListItemsByCategory(_ context.Context, categoryID int64) ([]catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Item
	for _, item := range s.items {
		if item.CategoryID == categoryID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListItemImages(_ context.Context, itemID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.images[itemID]...), nil
}

func (s *fakeStore) ListNewItems(_ context.Context) ([]catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Item
	for _, item := range s.items {
		if item.IsNew {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ClearNewItemFlags(_ context.Context, itemIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range itemIDs {
		if item, ok := s.items[id]; ok {
			item.IsNew = false
			s.items[id] = item
		}
	}
	return nil
}

func (s *fakeStore) CloseItem(_ context.Context, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return catalog.ErrItemNotFound
	}
	item.Open = false
	s.items[itemID] = item
	return nil
}

func (s *fakeStore) DeleteItem(_ context.Context, itemID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return false, nil
	}
	delete(s.items, itemID)
	return true, nil
}

func (s *fakeStore) InsertBid(_ context.Context, itemID int64, bidderID domain.UserID, amountCents int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertBid {
		return 0, fmt.Errorf("disk full")
	}
	s.nextBidID++
	s.bids = append(s.bids, catalog.Bid{
		ID: s.nextBidID, ItemID: itemID, BidderID: bidderID,
		AmountCents: amountCents, CreatedAt: time.Now(),
	})
	return s.nextBidID, nil
}

func (s *fakeStore) BestBid(_ context.Context, itemID int64) (*catalog.BestBid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *catalog.BestBid
	for _, b := range s.bids {
		if b.ItemID != itemID {
			continue
		}
		if best == nil || b.AmountCents > best.AmountCents {
			best = &catalog.BestBid{BidderID: b.BidderID, AmountCents: b.AmountCents}
		}
	}
	return best, nil
}

func (s *fakeStore) UserBestBid(_ context.Context, itemID int64, userID domain.UserID) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var amount int64
	found := false
	for _, b := range s.bids {
		if b.ItemID == itemID && b.BidderID == userID && b.AmountCents > amount {
			amount = b.AmountCents
			found = true
		}
	}
	return amount, found, nil
}

func (s *fakeStore) ListItemBidderIDs(_ context.Context, itemID int64) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[domain.UserID]struct{})
	var out []domain.UserID
	for _, b := range s.bids {
		if b.ItemID != itemID {
			continue
		}
		if _, ok := seen[b.BidderID]; ok {
			continue
		}
		seen[b.BidderID] = struct{}{}
		out = append(out, b.BidderID)
	}
	return out, nil
}

func (s *fakeStore) ListUserBidItems(_ context.Context, userID domain.UserID) ([]catalog.UserBidItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bestByItem := make(map[int64]int64)
	for _, b := range s.bids {
		if b.BidderID == userID && b.AmountCents > bestByItem[b.ItemID] {
			bestByItem[b.ItemID] = b.AmountCents
		}
	}
	var out []catalog.UserBidItem
	for itemID, amount := range bestByItem {
		item, ok := s.items[itemID]
		if !ok {
			continue
		}
		out = append(out, catalog.UserBidItem{Item: item, AmountCents: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.ID < out[j].Item.ID })
	return out, nil
}

func (s *fakeStore) AddFavorite(_ context.Context, userID domain.UserID, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites[favKey(userID, itemID)] = struct{}{}
	return nil
}

func (s *fakeStore) RemoveFavorite(_ context.Context, userID domain.UserID, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favorites, favKey(userID, itemID))
	return nil
}

func (s *fakeStore) IsFavorite(_ context.Context, userID domain.UserID, itemID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.favorites[favKey(userID, itemID)]
	return ok, nil
}

func (s *fakeStore) ListFavorites(_ context.Context, userID domain.UserID) ([]catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Item
	for itemID, item := range s.items {
		if _, ok := s.favorites[favKey(userID, itemID)]; ok {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListItemFavoriteUserIDs(_ context.Context, itemID int64) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserID
	for id := range s.users {
		if _, ok := s.favorites[favKey(id, itemID)]; ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// fakeMessenger records outbound traffic per chat.
type fakeMessenger struct {
	mu    sync.Mutex
	texts map[domain.ChatID][]string
	edits map[domain.ChatID][]string
	media map[domain.ChatID][][]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		texts: make(map[domain.ChatID][]string),
		edits: make(map[domain.ChatID][]string),
		media: make(map[domain.ChatID][][]string),
	}
}

var _ Messenger = (*fakeMessenger)(nil)

func (m *fakeMessenger) SendText(_ context.Context, chatID domain.ChatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[chatID] = append(m.texts[chatID], text)
	return nil
}

func (m *fakeMessenger) SendKeyboard(_ context.Context, chatID domain.ChatID, text string, _ Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[chatID] = append(m.texts[chatID], text)
	return nil
}

func (m *fakeMessenger) EditText(_ context.Context, chatID domain.ChatID, _ int, text string, _ Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits[chatID] = append(m.edits[chatID], text)
	return nil
}

func (m *fakeMessenger) EditKeyboard(_ context.Context, _ domain.ChatID, _ int, _ Keyboard) error {
	return nil
}

func (m *fakeMessenger) SendMediaGroup(_ context.Context, chatID domain.ChatID, fileIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[chatID] = append(m.media[chatID], append([]string(nil), fileIDs...))
	return nil
}

func (m *fakeMessenger) lastText(chatID domain.ChatID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.texts[chatID]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func (m *fakeMessenger) allTexts(chatID domain.ChatID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts[chatID]...)
}

func (m *fakeMessenger) containsText(chatID domain.ChatID, substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.texts[chatID] {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}
