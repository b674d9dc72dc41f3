// Package notify posts negotiation outcomes to chat platforms.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/dealscout/internal/negotiation"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Event is a platform-neutral notification.
type Event struct {
	Title    string
	Body     string
	Severity string // "info", "warning", "error", "success"
	Color    string
	Fields   []Field
}

// Field is a key-value pair displayed with an event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Notifier delivers events to one destination.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Multi fans an event out to every notifier. All are attempted; their errors
// are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

func statusSeverity(s negotiation.Status) string {
	switch s {
	case negotiation.StatusSuccess:
		return "success"
	case negotiation.StatusNoDeal:
		return "warning"
	default:
		return "error"
	}
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// ResultEvent formats a finished negotiation over the listing titled title.
func ResultEvent(title string, res negotiation.Result) Event {
	sev := statusSeverity(res.Status)
	evt := Event{
		Severity: sev,
		Color:    severityColor(sev),
		Fields: []Field{
			{Name: "Asking", Value: money(res.OriginalPrice), Short: true},
			{Name: "Turns", Value: fmt.Sprintf("%d", res.TurnCount), Short: true},
		},
	}
	switch res.Status {
	case negotiation.StatusSuccess:
		evt.Title = fmt.Sprintf("Deal reached: %s", title)
		evt.Body = fmt.Sprintf("Bought for %s, saving %s (%.2f%%).",
			money(res.NegotiatedPrice), money(res.Savings), res.SavingsPercent)
		evt.Fields = append(evt.Fields,
			Field{Name: "Price", Value: money(res.NegotiatedPrice), Short: true},
			Field{Name: "Savings", Value: money(res.Savings), Short: true},
		)
	case negotiation.StatusNoDeal:
		evt.Title = fmt.Sprintf("No deal: %s", title)
		evt.Body = fmt.Sprintf("Negotiation ended without agreement after %d turns.", res.TurnCount)
	default:
		evt.Title = fmt.Sprintf("Negotiation failed: %s", title)
		evt.Body = res.Reason
	}
	if res.SellerID != "" {
		evt.Fields = append(evt.Fields, Field{Name: "Seller", Value: res.SellerID, Short: true})
	}
	return evt
}

// HuntEvent formats the outcome of a hunt for query. best is nil when no
// negotiation succeeded.
func HuntEvent(query string, found int, bestTitle string, best *negotiation.Result) Event {
	if best == nil {
		return Event{
			Title:    fmt.Sprintf("Hunt finished: %s", query),
			Body:     fmt.Sprintf("Negotiated with %d sellers, no deal reached.", found),
			Severity: "warning",
			Color:    severityColor("warning"),
		}
	}
	return Event{
		Title: fmt.Sprintf("Best deal for %q: %s", query, bestTitle),
		Body: fmt.Sprintf("%s instead of %s across %d sellers.",
			money(best.NegotiatedPrice), money(best.OriginalPrice), found),
		Severity: "success",
		Color:    severityColor("success"),
		Fields: []Field{
			{Name: "Listing", Value: best.ListingID, Short: true},
			{Name: "Savings", Value: fmt.Sprintf("%s (%.2f%%)", money(best.Savings), best.SavingsPercent), Short: true},
		},
	}
}
