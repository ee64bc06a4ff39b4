package render

import (
	"fmt"
	"strings"

	"github.com/lguibr/asciiring/helpers"

	"github.com/lguibr/bazaar/market"
)

// ClearScreen wipes the terminal before a fresh render.
func ClearScreen() {
	helpers.ClearScreen()
}

// ANSI escape codes for the status column
const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiGreen = "\033[32m"
	ansiRed   = "\033[31m"
)

const (
	titleHeader  = "Title"
	priceHeader  = "Price"
	statusHeader = "Status"
)

// statusToAnsi picks the colour of a status cell
func statusToAnsi(status market.Status) string {
	if status == market.Sold {
		return ansiRed
	}
	return ansiGreen
}

// Catalogue renders a seller's listings as an ASCII table. With color set,
// the status column is green for available and red for sold listings.
func Catalogue(seller string, listings []market.Listing, color bool) string {
	titleWidth, priceWidth, statusWidth := len(titleHeader), len(priceHeader), len(statusHeader)
	for _, l := range listings {
		titleWidth = max(titleWidth, len(l.Title))
		priceWidth = max(priceWidth, len(fmt.Sprint(l.Price)))
		statusWidth = max(statusWidth, len(l.Status.String()))
	}

	border := "+" + strings.Repeat("-", titleWidth+2) +
		"+" + strings.Repeat("-", priceWidth+2) +
		"+" + strings.Repeat("-", statusWidth+2) + "+\n"

	var table strings.Builder
	heading := seller + " catalogue"
	if color {
		heading = ansiBold + heading + ansiReset
	}
	table.WriteString(heading + "\n")
	table.WriteString(border)
	fmt.Fprintf(&table, "| %-*s | %*s | %-*s |\n", titleWidth, titleHeader, priceWidth, priceHeader, statusWidth, statusHeader)
	table.WriteString(border)
	if len(listings) == 0 {
		inner := titleWidth + priceWidth + statusWidth + 6
		fmt.Fprintf(&table, "| %-*s |\n", inner, "(empty)")
	}
	for _, l := range listings {
		status := fmt.Sprintf("%-*s", statusWidth, l.Status.String())
		if color {
			// Pad before colouring so escape codes do not skew the width
			status = statusToAnsi(l.Status) + status + ansiReset
		}
		fmt.Fprintf(&table, "| %-*s | %*d | %s |\n", titleWidth, l.Title, priceWidth, l.Price, status)
	}
	table.WriteString(border)
	return table.String()
}

// Outcome renders one line summarising what a buyer achieved.
func Outcome(buyer, target string, o market.Outcome) string {
	switch o.State {
	case market.Done:
		line := fmt.Sprintf("%s bought %s from %s for %d", buyer, target, o.Seller, o.Price)
		if o.Assumed {
			line += " (unconfirmed)"
		}
		return line
	case market.Terminated:
		return fmt.Sprintf("%s gave up on %s: %s", buyer, target, o.Reason)
	default:
		return fmt.Sprintf("%s is still negotiating for %s (%s)", buyer, target, o.State)
	}
}
