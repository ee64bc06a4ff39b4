// File: driver.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lguibr/bazaar/market"
	"github.com/lguibr/bazaar/render"
	"github.com/lguibr/bazaar/utils"
)

// driver runs buying cycles against a started simulation. Targets come from
// the prompt reader when interactive, otherwise from the fixed list.
type driver struct {
	sim      *market.Simulation
	cfg      utils.Config
	log      *logrus.Logger
	in       *bufio.Reader
	out      io.Writer
	targets  []string
	interval time.Duration
}

// seedSellers creates every configured seller with its seed listings.
func seedSellers(sim *market.Simulation, sellers []utils.SellerConfig) error {
	for _, sc := range sellers {
		seller, err := sim.CreateSeller(sc.Name)
		if err != nil {
			return err
		}
		for _, l := range sc.Listings {
			if _, err := seller.AddOrUpdate(l.Title, l.Price); err != nil {
				return fmt.Errorf("seed %s: %w", sc.Name, err)
			}
		}
	}
	return nil
}

// splitTargets parses a comma separated title list, dropping blanks.
func splitTargets(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// prompt asks question and returns the trimmed answer, or fallback when the
// answer is blank or input is exhausted.
func (d *driver) prompt(question, fallback string) string {
	if fallback != "" {
		fmt.Fprintf(d.out, "%s [%s]: ", question, fallback)
	} else {
		fmt.Fprintf(d.out, "%s: ", question)
	}
	line, _ := d.in.ReadString('\n')
	if line = strings.TrimSpace(line); line == "" {
		return fallback
	}
	return line
}

// buyerTargets decides the title each configured buyer hunts this cycle.
func (d *driver) buyerTargets() []utils.BuyerConfig {
	buyers := make([]utils.BuyerConfig, len(d.cfg.Buyers))
	copy(buyers, d.cfg.Buyers)
	for i := range buyers {
		switch {
		case len(d.targets) > 0:
			buyers[i].Target = d.targets[i%len(d.targets)]
		case d.in != nil:
			buyers[i].Target = d.prompt("Enter the book title for "+buyers[i].Name, buyers[i].Target)
		}
	}
	return buyers
}

// runCycle creates this cycle's buyers, lets them negotiate and reports the
// outcomes. Buyers are stopped and cleared before it returns.
func (d *driver) runCycle(ctx context.Context) error {
	defer d.sim.ClearBuyers()
	for _, bc := range d.buyerTargets() {
		if _, err := d.sim.CreateBuyer(bc.Name, bc.Target, d.interval); err != nil {
			d.sim.StopBuyers()
			return err
		}
	}

	if err := d.sim.StartBuyers(); err != nil {
		d.sim.StopBuyers()
		return err
	}
	if !d.sim.WaitForCompletion(ctx, d.cfg.CompletionTimeout) {
		d.log.Warn("Some buyers did not finish in time")
	}

	// Late replies still in flight get a moment to land before the buyers go.
	select {
	case <-time.After(d.cfg.LateMessageGrace):
	case <-ctx.Done():
	}
	d.sim.StopBuyers()

	fmt.Fprintln(d.out, "=== Results ===")
	for _, b := range d.sim.Buyers() {
		fmt.Fprintln(d.out, render.Outcome(b.Name(), b.Target(), b.Outcome()))
	}
	return nil
}

// run loops over cycles until the user declines another round, cycles runs
// out (non-interactive), or ctx is cancelled.
func (d *driver) run(ctx context.Context, cycles int) error {
	for cycle := 1; ; cycle++ {
		if err := d.runCycle(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if len(d.targets) > 0 || d.in == nil {
			if cycle >= cycles {
				return nil
			}
			continue
		}
		answer := d.prompt("Run another transaction? (y/n)", "n")
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}
}
