// Package bot contains the conversational core of lotbot: the typed action
// grammar, the router that maps inbound chat input to handlers, the draft
// state machines and the message rendering. It talks to the chat network
// only through the Messenger interface, keeping the transport swappable.
package bot

import (
	"context"

	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
)

// Button is a transport-neutral inline button carrying an action payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

// Messenger is the outbound chat surface. Implementations must treat an
// edit that changes nothing as success, not an error.
type Messenger interface {
	SendText(ctx context.Context, chatID domain.ChatID, text string) error
	SendKeyboard(ctx context.Context, chatID domain.ChatID, text string, keyboard Keyboard) error
	EditText(ctx context.Context, chatID domain.ChatID, messageID int, text string, keyboard Keyboard) error
	EditKeyboard(ctx context.Context, chatID domain.ChatID, messageID int, keyboard Keyboard) error
	// SendMediaGroup sends a batch of photos by opaque media reference.
	SendMediaGroup(ctx context.Context, chatID domain.ChatID, fileIDs []string) error
}

// InboundMessage is a chat message normalized by the transport adapter.
// Text holds the message text or media caption; PhotoIDs holds the media
// references of any attached photos.
type InboundMessage struct {
	ChatID   domain.ChatID
	From     catalog.User
	Text     string
	PhotoIDs []string
}

// InboundCallback is an inline-button press normalized by the transport
// adapter. HasMessage is false when the originating message is no longer
// accessible.
type InboundCallback struct {
	From       catalog.User
	ChatID     domain.ChatID
	MessageID  int
	HasMessage bool
	Data       string
}
