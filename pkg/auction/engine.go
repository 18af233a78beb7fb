// Package auction implements the bid acceptance engine: validation,
// commit, highest-bidder transitions and the notification hand-off.
package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/money"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// Reason classifies bid validation failures.
type Reason string

const (
	ReasonInvalidAmount Reason = "invalid_amount"
	ReasonNotFound      Reason = "not_found"
	ReasonClosed        Reason = "closed"
	ReasonTooLow        Reason = "too_low"
	ReasonBelowStart    Reason = "below_start"
)

// BidError is a user-correctable bid rejection. Storage failures are
// returned as plain wrapped errors instead.
type BidError struct {
	Reason Reason
	// LimitCents carries the bound the bid failed against (current best
	// for TooLow, start price for BelowStart).
	LimitCents int64
}

func (e *BidError) Error() string {
	switch e.Reason {
	case ReasonTooLow:
		return fmt.Sprintf("bid must exceed %d", e.LimitCents)
	case ReasonBelowStart:
		return fmt.Sprintf("bid must be at least %d", e.LimitCents)
	default:
		return string(e.Reason)
	}
}

// Terminal reports whether retrying the same draft is pointless.
func (e *BidError) Terminal() bool {
	return e.Reason == ReasonNotFound || e.Reason == ReasonClosed
}

// UserMessage renders the corrective message shown to the bidder.
func (e *BidError) UserMessage() string {
	switch e.Reason {
	case ReasonInvalidAmount:
		return "Amount must match 0.00 format"
	case ReasonNotFound:
		return "Item not found."
	case ReasonClosed:
		return "Auction is closed."
	case ReasonTooLow:
		return fmt.Sprintf("Your bid must exceed %s.", money.FormatCents(e.LimitCents))
	case ReasonBelowStart:
		return fmt.Sprintf("Your bid must be at least %s.", money.FormatCents(e.LimitCents))
	default:
		return "Failed to place bid, try again later."
	}
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Notifier delivers the post-commit notices. Delivery failures never undo
// a committed bid; implementations log and swallow transport errors.
type Notifier interface {
	NotifyOutbid(ctx context.Context, item catalog.Item, previous catalog.BestBid, newAmountCents int64, newBidder catalog.User) error
	NotifySeller(ctx context.Context, item catalog.Item, bidder catalog.User, amountCents int64) error
}

// Result describes an accepted bid.
type Result struct {
	Item         catalog.Item
	AmountCents  int64
	PreviousBest *catalog.BestBid
	// IsNewHighest is true when the committed bid is now the item's best.
	IsNewHighest bool
}

const lockStripes = 64

// Engine validates and commits bids. The read-best-then-insert sequence is
// a check-then-act race under concurrency, so PlaceBid serializes per item
// via a striped lock; without it two simultaneous bids could both pass
// validation and break the strictly-increasing invariant.
type Engine struct {
	store    catalog.Store
	notifier Notifier
	bus      domain.EventBus
	locks    [lockStripes]sync.Mutex
}

// NewEngine creates a bid engine over the given store.
func NewEngine(store catalog.Store, notifier Notifier, bus domain.EventBus) *Engine {
	return &Engine{store: store, notifier: notifier, bus: bus}
}

// PlaceBid parses amountText, validates it against the item's current best
// bid (or start price) and commits it. On success it dispatches the outbid
// and seller notices; their failures are logged, never surfaced.
func (e *Engine) PlaceBid(ctx context.Context, itemID int64, bidder catalog.User, amountText string) (Result, error) {
	amountCents, err := money.ParseCents(amountText)
	if err != nil {
		return Result{}, &BidError{Reason: ReasonInvalidAmount}
	}

	result, err := e.commit(ctx, itemID, bidder.ID, amountCents)
	if err != nil {
		var bidErr *BidError
		if errors.As(err, &bidErr) {
			e.bus.Publish(domain.NewEvent(domain.EventBidRejected, map[string]interface{}{
				"item_id":      itemID,
				"bidder_id":    int64(bidder.ID),
				"amount_cents": amountCents,
				"reason":       string(bidErr.Reason),
			}))
		}
		return Result{}, err
	}

	logger.InfoCF("auction", "bid accepted", map[string]interface{}{
		"item_id":      itemID,
		"bidder_id":    int64(bidder.ID),
		"amount_cents": amountCents,
		"new_highest":  result.IsNewHighest,
	})
	e.bus.Publish(domain.NewEvent(domain.EventBidAccepted, map[string]interface{}{
		"item_id":      itemID,
		"bidder_id":    int64(bidder.ID),
		"amount_cents": amountCents,
	}))

	if result.IsNewHighest && result.PreviousBest != nil && result.PreviousBest.BidderID != bidder.ID {
		if err := e.notifier.NotifyOutbid(ctx, result.Item, *result.PreviousBest, amountCents, bidder); err != nil {
			logger.WarnCF("auction", "failed to notify outbid user", map[string]interface{}{
				"item_id": itemID,
				"user_id": int64(result.PreviousBest.BidderID),
				"error":   err.Error(),
			})
		}
	}
	if err := e.notifier.NotifySeller(ctx, result.Item, bidder, amountCents); err != nil {
		logger.WarnCF("auction", "failed to notify seller", map[string]interface{}{
			"item_id": itemID,
			"user_id": int64(result.Item.SellerID),
			"error":   err.Error(),
		})
	}

	return result, nil
}

// commit runs the serialized load-validate-insert sequence.
func (e *Engine) commit(ctx context.Context, itemID int64, bidderID domain.UserID, amountCents int64) (Result, error) {
	lock := &e.locks[uint64(itemID)%lockStripes]
	lock.Lock()
	defer lock.Unlock()

	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("load item %d: %w", itemID, err)
	}
	if item == nil {
		return Result{}, &BidError{Reason: ReasonNotFound}
	}
	if !item.Open {
		return Result{}, &BidError{Reason: ReasonClosed}
	}

	previous, err := e.store.BestBid(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("load best bid for item %d: %w", itemID, err)
	}
	if previous != nil {
		if amountCents <= previous.AmountCents {
			return Result{}, &BidError{Reason: ReasonTooLow, LimitCents: previous.AmountCents}
		}
	} else if amountCents < item.StartPriceCents {
		return Result{}, &BidError{Reason: ReasonBelowStart, LimitCents: item.StartPriceCents}
	}

	if _, err := e.store.InsertBid(ctx, itemID, bidderID, amountCents); err != nil {
		return Result{}, fmt.Errorf("insert bid on item %d: %w", itemID, err)
	}

	best, err := e.store.BestBid(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("recompute best bid for item %d: %w", itemID, err)
	}
	isNewHighest := best != nil && best.BidderID == bidderID && best.AmountCents == amountCents

	return Result{Item: *item, AmountCents: amountCents, PreviousBest: previous, IsNewHighest: isNewHighest}, nil
}
