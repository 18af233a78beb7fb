package conversation

import (
	"sync"
	"testing"
)

func TestStoreDefaultsToIdle(t *testing.T) {
	store := NewStore()
	if _, ok := store.Get(42).(Idle); !ok {
		t.Fatalf("expected Idle for unknown chat, got %T", store.Get(42))
	}
}

func TestStoreSetGetClear(t *testing.T) {
	store := NewStore()
	store.Set(1, NewAddItemDraft(7))

	draft, ok := store.Get(1).(AddItemDraft)
	if !ok {
		t.Fatalf("expected AddItemDraft, got %T", store.Get(1))
	}
	if draft.Stage != StageCategory {
		t.Errorf("new draft stage = %q, want %q", draft.Stage, StageCategory)
	}
	if draft.OwnerID != 7 {
		t.Errorf("draft owner = %d, want 7", draft.OwnerID)
	}

	store.Clear(1)
	if _, ok := store.Get(1).(Idle); !ok {
		t.Fatalf("expected Idle after Clear, got %T", store.Get(1))
	}
}

func TestStoreSettingIdleClears(t *testing.T) {
	store := NewStore()
	store.Set(5, PlaceBidDraft{ItemID: 1, BidderID: 2})
	store.Set(5, Idle{})
	if _, ok := store.Get(5).(Idle); !ok {
		t.Fatalf("expected Idle, got %T", store.Get(5))
	}
}

func TestWithChatSerializesPerChat(t *testing.T) {
	store := NewStore()
	const iterations = 200

	var wg sync.WaitGroup
	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.WithChat(9, func() {
				state, _ := store.Get(9).(AddItemDraft)
				if state.OwnerID == 0 {
					state = NewAddItemDraft(9)
				}
				state.AddImage("file-" + string(rune('a'+len(state.Images)%26)))
				store.Set(9, state)
			})
		}()
	}
	wg.Wait()

	draft, ok := store.Get(9).(AddItemDraft)
	if !ok {
		t.Fatalf("expected AddItemDraft, got %T", store.Get(9))
	}
	// 26 distinct references, duplicates dropped; no update may be lost.
	if len(draft.Images) != 26 {
		t.Errorf("image count = %d, want 26", len(draft.Images))
	}
}

func TestAddImageDeduplicates(t *testing.T) {
	draft := NewAddItemDraft(1)
	if !draft.AddImage("x") {
		t.Error("first AddImage should report new")
	}
	if draft.AddImage("x") {
		t.Error("duplicate AddImage should report existing")
	}
	if len(draft.Images) != 1 {
		t.Errorf("image count = %d, want 1", len(draft.Images))
	}
}
