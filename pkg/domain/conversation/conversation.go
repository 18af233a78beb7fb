// Package conversation defines the per-chat conversation bounded context:
// the tagged-union state tracking which multi-step workflow is in progress,
// and the in-memory store that serializes access per chat.
//
// State lives for the process lifetime only. An abandoned draft is
// recoverable solely by re-initiating the action after a restart.
package conversation

import "github.com/lotbot/lotbot/pkg/domain"

// ---------------------------------------------------------------------------
// Conversation state — one variant per workflow
// ---------------------------------------------------------------------------

// State is the tagged union of conversation states. Exactly one variant is
// active per chat; handlers route by type switch, never by raw strings.
type State interface {
	conversationState()
}

// Idle means no workflow is in progress.
type Idle struct{}

func (Idle) conversationState() {}

// Stage identifies the current step of an item creation draft.
type Stage string

const (
	StageCategory    Stage = "category"
	StageTitle       Stage = "title"
	StageDescription Stage = "description"
	StageStartPrice  Stage = "start_price"
)

// AddItemDraft accumulates a new item across the multi-step workflow.
// Only the admin that started the draft may advance it.
type AddItemDraft struct {
	Stage           Stage
	OwnerID         domain.UserID
	Images          []string // ordered, deduplicated by reference identity
	CategoryID      int64
	CategoryName    string
	HasCategory     bool
	Title           string
	Description     string
	StartPriceCents int64
}

func (AddItemDraft) conversationState() {}

// NewAddItemDraft starts an item draft at the category stage.
func NewAddItemDraft(ownerID domain.UserID) AddItemDraft {
	return AddItemDraft{Stage: StageCategory, OwnerID: ownerID}
}

// AddImage appends a media reference, skipping duplicates. Returns true if
// the image was new.
func (d *AddItemDraft) AddImage(fileID string) bool {
	for _, existing := range d.Images {
		if existing == fileID {
			return false
		}
	}
	d.Images = append(d.Images, fileID)
	return true
}

// PlaceBidDraft means the chat is awaiting a bid amount for an item.
type PlaceBidDraft struct {
	ItemID   int64
	BidderID domain.UserID
}

func (PlaceBidDraft) conversationState() {}

// Single-step admin drafts. Each awaits exactly one text payload from the
// admin that initiated it.

// AddCategoryDraft awaits a new category name.
type AddCategoryDraft struct{ AdminID domain.UserID }

func (AddCategoryDraft) conversationState() {}

// CloseItemDraft awaits the numeric id of the item to close.
type CloseItemDraft struct{ AdminID domain.UserID }

func (CloseItemDraft) conversationState() {}

// RemoveItemDraft awaits the numeric id of the item to remove.
type RemoveItemDraft struct{ AdminID domain.UserID }

func (RemoveItemDraft) conversationState() {}

// RemoveCategoryDraft awaits the name of the category to remove.
type RemoveCategoryDraft struct{ AdminID domain.UserID }

func (RemoveCategoryDraft) conversationState() {}

// BroadcastDraft awaits the announcement text.
type BroadcastDraft struct{ AdminID domain.UserID }

func (BroadcastDraft) conversationState() {}
