// Package notify converts accepted listings into outbound messages and
// hands them to the notification channel.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"flatwatch/internal/model"
)

// DispatchError is a notification channel failure. The listing stays
// recorded as seen; no duplicate notification is ever risked to recover a
// lost one.
type DispatchError struct {
	Fingerprint string
	Err         error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %.12s: %v", e.Fingerprint, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Channel delivers one formatted message to a target (e.g. a chat id).
// Transport details live behind this interface.
type Channel interface {
	Send(ctx context.Context, text, target string) error
}

// Dispatcher formats accepted listings and sends them through a Channel.
type Dispatcher struct {
	ch     Channel
	target string
}

// NewDispatcher constructs a Dispatcher sending to target.
func NewDispatcher(ch Channel, target string) *Dispatcher {
	return &Dispatcher{ch: ch, target: target}
}

// Dispatch sends the notification for l.
func (d *Dispatcher) Dispatch(ctx context.Context, l model.Listing) error {
	if err := d.ch.Send(ctx, FormatMessage(l), d.target); err != nil {
		return &DispatchError{Fingerprint: l.Fingerprint, Err: err}
	}
	return nil
}

// FormatMessage renders the Markdown notification text for a listing.
func FormatMessage(l model.Listing) string {
	var b strings.Builder
	b.WriteString("🏠 *New apartment found!*\n\n")
	fmt.Fprintf(&b, "💰 *Price:* %d ₽/month\n", l.Price)
	if l.Rooms > 0 {
		fmt.Fprintf(&b, "🚪 *Rooms:* %d\n", l.Rooms)
	}
	if l.Area != "" {
		fmt.Fprintf(&b, "📐 *Area:* %s\n", l.Area)
	}
	if l.Location != "" {
		fmt.Fprintf(&b, "📍 *Location:* %s\n", l.Location)
	}
	fmt.Fprintf(&b, "🌐 *Source:* %s\n\n", l.SourceID)
	fmt.Fprintf(&b, "*%s*\n\n", l.Title)
	fmt.Fprintf(&b, "🔗 [View listing](%s)", l.URL)
	return b.String()
}

// LogChannel writes messages to the process log. Used when no Telegram
// credentials are configured, so the pipeline stays runnable in dev.
type LogChannel struct{}

func (LogChannel) Send(_ context.Context, text, target string) error {
	log.Printf("[notify] (target %s)\n%s", target, text)
	return nil
}
