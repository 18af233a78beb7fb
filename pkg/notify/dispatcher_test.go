package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/infrastructure/eventbus"
)

type flakySender struct {
	mu       sync.Mutex
	failFor  map[domain.ChatID]bool
	received map[domain.ChatID][]string
}

func newFlakySender() *flakySender {
	return &flakySender{
		failFor:  make(map[domain.ChatID]bool),
		received: make(map[domain.ChatID][]string),
	}
}

func (s *flakySender) SendText(_ context.Context, chatID domain.ChatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[chatID] {
		return fmt.Errorf("chat unavailable")
	}
	s.received[chatID] = append(s.received[chatID], text)
	return nil
}

func (s *flakySender) texts(chatID domain.ChatID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received[chatID]...)
}

// notifyStore implements the slice of catalog.Store the dispatcher touches.
type notifyStore struct {
	catalog.Store
	userIDs    []domain.UserID
	muted      map[domain.UserID]bool
	best       *catalog.BestBid
	bidders    []domain.UserID
	favoriters []domain.UserID
}

func (s *notifyStore) ListUserIDs(context.Context) ([]domain.UserID, error) {
	return s.userIDs, nil
}

func (s *notifyStore) NotificationsMuted(_ context.Context, userID domain.UserID) (bool, error) {
	return s.muted[userID], nil
}

func (s *notifyStore) FilterNotifiable(_ context.Context, ids []domain.UserID) ([]domain.UserID, error) {
	out := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		if !s.muted[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *notifyStore) BestBid(context.Context, int64) (*catalog.BestBid, error) {
	return s.best, nil
}

func (s *notifyStore) ListItemBidderIDs(context.Context, int64) ([]domain.UserID, error) {
	return s.bidders, nil
}

func (s *notifyStore) ListItemFavoriteUserIDs(context.Context, int64) ([]domain.UserID, error) {
	return s.favoriters, nil
}

func testItem() catalog.Item {
	return catalog.Item{ID: 7, SellerID: 1, Title: "Vintage chronograph", StartPriceCents: 5000, Open: true}
}

func TestBroadcastSkipsFailedRecipients(t *testing.T) {
	sender := newFlakySender()
	recipients := make([]domain.UserID, 0, 10)
	for i := int64(1); i <= 10; i++ {
		recipients = append(recipients, domain.UserID(i))
	}
	sender.failFor[3] = true
	sender.failFor[7] = true

	d := NewDispatcher(sender, &notifyStore{}, eventbus.New())
	delivered := d.Broadcast(context.Background(), recipients, "hello")

	if delivered != 8 {
		t.Fatalf("delivered = %d, want 8", delivered)
	}
	if got := sender.texts(4); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("recipient 4 texts = %v", got)
	}
	if got := sender.texts(3); len(got) != 0 {
		t.Fatalf("failed recipient must receive nothing, got %v", got)
	}
}

func TestBroadcastAllIgnoresMute(t *testing.T) {
	sender := newFlakySender()
	store := &notifyStore{
		userIDs: []domain.UserID{1, 2, 3},
		muted:   map[domain.UserID]bool{2: true},
	}
	d := NewDispatcher(sender, store, eventbus.New())

	delivered, err := d.BroadcastAll(context.Background(), "maintenance tonight")
	if err != nil {
		t.Fatalf("BroadcastAll: %v", err)
	}
	if delivered != 3 {
		t.Fatalf("delivered = %d, want 3 (mute does not apply to broadcasts)", delivered)
	}
	if got := sender.texts(2); len(got) != 1 {
		t.Fatalf("muted user must still get broadcasts, got %v", got)
	}
}

func TestNotifyOutbidHonorsMute(t *testing.T) {
	sender := newFlakySender()
	store := &notifyStore{muted: map[domain.UserID]bool{9: true}}
	d := NewDispatcher(sender, store, eventbus.New())

	previous := catalog.BestBid{BidderID: 9, AmountCents: 6000}
	newBidder := catalog.User{ID: 2, Username: "buyer"}
	if err := d.NotifyOutbid(context.Background(), testItem(), previous, 7000, newBidder); err != nil {
		t.Fatalf("NotifyOutbid: %v", err)
	}
	if got := sender.texts(9); len(got) != 0 {
		t.Fatalf("muted user must not get outbid notices, got %v", got)
	}

	store.muted = nil
	if err := d.NotifyOutbid(context.Background(), testItem(), previous, 7000, newBidder); err != nil {
		t.Fatalf("NotifyOutbid: %v", err)
	}
	got := sender.texts(9)
	if len(got) != 1 {
		t.Fatalf("expected one outbid notice, got %v", got)
	}
	want := "⚠️ Your bid of AED 60.00 on item #7 (Vintage chronograph) was beaten by @buyer. New highest bid: AED 70.00."
	if got[0] != want {
		t.Fatalf("outbid text = %q, want %q", got[0], want)
	}
}

func TestNotifyItemClosedWinnerAndParticipants(t *testing.T) {
	sender := newFlakySender()
	store := &notifyStore{
		best:       &catalog.BestBid{BidderID: 2, AmountCents: 7000},
		bidders:    []domain.UserID{2, 3},
		favoriters: []domain.UserID{3, 4, 5},
		muted:      map[domain.UserID]bool{5: true},
	}
	d := NewDispatcher(sender, store, eventbus.New())

	if err := d.NotifyItemClosed(context.Background(), testItem()); err != nil {
		t.Fatalf("NotifyItemClosed: %v", err)
	}

	winner := sender.texts(2)
	if len(winner) != 1 {
		t.Fatalf("winner notices = %v", winner)
	}
	wantWinner := "🏁 Auction closed for item #7 (Vintage chronograph).\n\n🎉 Congratulations! You won with a bid of AED 70.00."
	if winner[0] != wantWinner {
		t.Fatalf("winner text = %q, want %q", winner[0], wantWinner)
	}

	// Recipient 3 appears as bidder and favoriter but gets exactly one notice.
	participant := sender.texts(3)
	if len(participant) != 1 {
		t.Fatalf("participant notices = %v", participant)
	}
	wantParticipant := "🏁 Auction closed for item #7 (Vintage chronograph).\nFinal price: AED 70.00. Thanks for taking part!"
	if participant[0] != wantParticipant {
		t.Fatalf("participant text = %q, want %q", participant[0], wantParticipant)
	}

	if got := sender.texts(4); len(got) != 1 {
		t.Fatalf("favoriter notices = %v", got)
	}
	if got := sender.texts(5); len(got) != 0 {
		t.Fatalf("muted user must not get closure notices, got %v", got)
	}
}

func TestNotifyItemClosedNoBids(t *testing.T) {
	sender := newFlakySender()
	store := &notifyStore{favoriters: []domain.UserID{4}}
	d := NewDispatcher(sender, store, eventbus.New())

	if err := d.NotifyItemClosed(context.Background(), testItem()); err != nil {
		t.Fatalf("NotifyItemClosed: %v", err)
	}
	got := sender.texts(4)
	if len(got) != 1 {
		t.Fatalf("notices = %v", got)
	}
	want := "🏁 Auction closed for item #7 (Vintage chronograph).\nThe item closed with no bids."
	if got[0] != want {
		t.Fatalf("text = %q, want %q", got[0], want)
	}
}

func TestNotifyItemClosedFailuresDoNotAbort(t *testing.T) {
	sender := newFlakySender()
	sender.failFor[2] = true
	store := &notifyStore{
		best:    &catalog.BestBid{BidderID: 2, AmountCents: 7000},
		bidders: []domain.UserID{2, 3},
	}
	d := NewDispatcher(sender, store, eventbus.New())

	if err := d.NotifyItemClosed(context.Background(), testItem()); err != nil {
		t.Fatalf("delivery failure must not surface: %v", err)
	}
	if got := sender.texts(3); len(got) != 1 {
		t.Fatalf("remaining recipients must still be notified, got %v", got)
	}
}

func TestAnnounceNewLotsDigest(t *testing.T) {
	sender := newFlakySender()
	store := &notifyStore{
		userIDs: []domain.UserID{1, 2},
		muted:   map[domain.UserID]bool{2: true},
	}
	d := NewDispatcher(sender, store, eventbus.New())

	items := []catalog.Item{
		{ID: 7, Title: "Vintage chronograph", StartPriceCents: 5000},
		{ID: 8, Title: "Pocket watch", StartPriceCents: 1050},
	}
	delivered, err := d.AnnounceNewLots(context.Background(), items)
	if err != nil {
		t.Fatalf("AnnounceNewLots: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("delivered = %d, want 2 (mute does not apply to announcements)", delivered)
	}
	got := sender.texts(1)
	if len(got) != 1 {
		t.Fatalf("digest notices = %v", got)
	}
	want := "🆕 New lots available!\n\n• #7 Vintage chronograph — start AED 50.00\n• #8 Pocket watch — start AED 10.50\n"
	if got[0] != want {
		t.Fatalf("digest = %q, want %q", got[0], want)
	}
}

func TestBidderLabel(t *testing.T) {
	tests := []struct {
		user catalog.User
		want string
	}{
		{catalog.User{Username: "buyer", FirstName: "Bea"}, "@buyer"},
		{catalog.User{FirstName: "Bea", LastName: "Smith"}, "Bea Smith"},
		{catalog.User{FirstName: "Bea"}, "Bea"},
	}
	for _, tt := range tests {
		if got := bidderLabel(tt.user); got != tt.want {
			t.Errorf("bidderLabel(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}
