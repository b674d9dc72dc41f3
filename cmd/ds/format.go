package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zulandar/dealscout/internal/negotiation"
	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiCyan   = "\033[36m"
	ansiDim    = "\033[2m"
)

// colorEnabled reports whether w is a terminal. NO_COLOR disables colour.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printer writes transcript lines, optionally coloured.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, color: colorEnabled(w)}
}

func (p *printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func roleColor(r negotiation.Role) string {
	switch r {
	case negotiation.RoleBuyer:
		return ansiCyan
	case negotiation.RoleSeller:
		return ansiYellow
	}
	return ansiDim
}

func statusColor(s negotiation.Status) string {
	switch s {
	case negotiation.StatusSuccess:
		return ansiGreen
	case negotiation.StatusNoDeal:
		return ansiYellow
	}
	return ansiRed
}

// message prints one transcript entry.
func (p *printer) message(m negotiation.Message) {
	label := strings.ToUpper(string(m.Role))
	if m.Role == negotiation.RoleSystem {
		fmt.Fprintf(p.w, "%s\n", p.paint(ansiDim, "-- "+m.Content))
		return
	}
	price := ""
	if m.OfferPrice != nil {
		price = " " + formatMoney(*m.OfferPrice)
	}
	fmt.Fprintf(p.w, "[%d] %s %s%s: %s\n", m.Turn, p.paint(roleColor(m.Role), label), m.Action, price, m.Content)
}

// result prints the outcome summary.
func (p *printer) result(res negotiation.Result) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(ansiBold, "Status:"), p.paint(statusColor(res.Status), string(res.Status)))
	fmt.Fprintf(p.w, "  Asking:     %s\n", formatMoney(res.OriginalPrice))
	fmt.Fprintf(p.w, "  Negotiated: %s\n", formatMoney(res.NegotiatedPrice))
	fmt.Fprintf(p.w, "  Savings:    %s (%.2f%%)\n", formatMoney(res.Savings), res.SavingsPercent)
	fmt.Fprintf(p.w, "  Turns:      %d\n", res.TurnCount)
	if res.Reason != "" {
		fmt.Fprintf(p.w, "  Reason:     %s\n", res.Reason)
	}
}

// formatMoney formats v as dollars with comma separators (e.g. 1234.5 -> "$1,234.50").
func formatMoney(v float64) string {
	if v < 0 {
		return "-" + formatMoney(-v)
	}
	s := fmt.Sprintf("%.2f", v)
	whole, frac := s[:len(s)-3], s[len(s)-3:]
	if len(whole) <= 3 {
		return "$" + whole + frac
	}

	var b strings.Builder
	remainder := len(whole) % 3
	if remainder > 0 {
		b.WriteString(whole[:remainder])
	}
	for i := remainder; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(whole[i : i+3])
	}
	return "$" + b.String() + frac
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
