package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/lguibr/asciiring/helpers"
	"golang.org/x/net/websocket"

	"github.com/lguibr/bazaar/market"
)

// feed prints market events as they arrive. Paused events are counted but
// not printed.
type feed struct {
	out io.Writer

	mu      sync.Mutex
	paused  bool
	missed  int
	printed int
}

func (f *feed) show(ev market.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		f.missed++
		return
	}
	fmt.Fprint(f.out, formatEvent(ev)+"\r\n")
	f.printed++
}

func (f *feed) togglePause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = !f.paused
	if f.paused {
		fmt.Fprint(f.out, "-- paused --\r\n")
		return
	}
	fmt.Fprintf(f.out, "-- resumed, %d events skipped --\r\n", f.missed)
	f.missed = 0
}

func formatEvent(ev market.Event) string {
	var line strings.Builder
	fmt.Fprintf(&line, "%s %-22s %-8s", ev.Timestamp.Format("15:04:05.000"), ev.Kind, ev.Actor)
	if ev.Title != "" {
		fmt.Fprintf(&line, " title=%s", ev.Title)
	}
	if ev.Seller != "" {
		fmt.Fprintf(&line, " seller=%s", ev.Seller)
	}
	if ev.Price > 0 {
		fmt.Fprintf(&line, " price=%d", ev.Price)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&line, " (%s)", ev.Detail)
	}
	return line.String()
}

func main() {
	addr := flag.String("addr", "localhost:3001", "marketplace observer address")
	topics := flag.String("topics", "", "regular expression over event kinds")
	flag.Parse()

	url := "ws://" + *addr + "/subscribe"
	if *topics != "" {
		url += "?topics=" + *topics
	}
	websocketConnection, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		fmt.Println("Error connecting to server:", err)
		return
	}
	defer websocketConnection.Close()

	f := &feed{out: os.Stdout}
	go func() {
		helpers.ClearScreen()
		fmt.Print("Market events (q quit, c clear, p pause):\r\n")
		for {
			var ev market.Event
			if err := websocket.JSON.Receive(websocketConnection, &ev); err != nil {
				fmt.Print("Error reading from server: ", err, "\r\n")
				return
			}
			f.show(ev)
		}
	}()

	restore, err := setRawMode(os.Stdin.Fd())
	if err != nil {
		fmt.Println("Error setting raw mode:", err)
		return
	}
	defer restore()

	interruptSignalChannel := make(chan os.Signal, 1)
	signal.Notify(interruptSignalChannel, os.Interrupt)
	go func() {
		<-interruptSignalChannel
		restore()
		os.Exit(0)
	}()

	singleByteBuffer := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(singleByteBuffer); err != nil {
			return
		}
		switch singleByteBuffer[0] {
		case 'q', 'Q':
			fmt.Print("Quitting\r\n")
			return
		case 'c', 'C':
			helpers.ClearScreen()
		case 'p', 'P':
			f.togglePause()
		}
	}
}
