// File: editor/editor.go
package editor

import (
	"fmt"
	"io"
	"sync"

	"github.com/lguibr/bazaar/market"
	"github.com/lguibr/bazaar/render"
)

// Editor is the catalogue surface an editing front end works against.
// *market.Seller implements it.
type Editor interface {
	AddOrUpdate(title string, price int) (market.UpdateResult, error)
	QueryAll() []market.Listing
}

// Watchable is an Editor that can report its own changes.
type Watchable interface {
	Editor
	Watch(n market.ChangeNotifier)
}

// Resolver finds the editor of a seller by name.
type Resolver func(seller string) (Editor, error)

// ConsoleView re-renders a seller's catalogue table on every change.
type ConsoleView struct {
	name   string
	source Editor
	out    io.Writer
	clear  bool

	mu      sync.Mutex
	renders int
}

// NewConsoleView renders source to out. With clear set, the terminal is
// wiped before each render.
func NewConsoleView(name string, source Editor, out io.Writer, clear bool) *ConsoleView {
	return &ConsoleView{name: name, source: source, out: out, clear: clear}
}

// Attach creates a view for source and subscribes it to source's changes.
func Attach(name string, source Watchable, out io.Writer, clear bool) *ConsoleView {
	view := NewConsoleView(name, source, out, clear)
	source.Watch(view)
	return view
}

// NotifyChanged re-renders the table.
func (v *ConsoleView) NotifyChanged() { v.Render() }

// Render writes the current table.
func (v *ConsoleView) Render() {
	listings := v.source.QueryAll()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.clear {
		render.ClearScreen()
	}
	fmt.Fprint(v.out, render.Catalogue(v.name, listings, v.clear))
	v.renders++
}

// Renders returns how many times the view has been drawn.
func (v *ConsoleView) Renders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.renders
}
