package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jroimartin/gocui"

	"pegrelay/internal/relay"
)

// Relay is what the console needs from the server.
type Relay interface {
	Hub() *relay.Hub
	Users() []relay.User
	Announce(text string) int
}

// Console is the operator view of a running relay.
type Console struct {
	gui    *gocui.Gui
	relay  Relay
	status string

	msgView    string
	userView   string
	statusView string
	inputView  string
}

func New(r Relay, status string) (*Console, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	c := &Console{
		gui:        g,
		relay:      r,
		status:     status,
		msgView:    "messages",
		userView:   "users",
		statusView: "status",
		inputView:  "input",
	}
	g.SetManagerFunc(c.layout)
	return c, nil
}

func (c *Console) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sidebarWidth := 24
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 7

	if v, err := g.SetView(c.msgView, 0, 0, msgWidth, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Traffic"
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(c.userView, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Online Users"
		v.Wrap = true
	}

	if v, err := g.SetView(c.statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		v.Wrap = true
	}

	if v, err := g.SetView(c.inputView, 0, msgHeight+4, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Announce"
		v.Editable = true
		v.Wrap = true
		if _, err := g.SetCurrentView(c.inputView); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) keybindings() error {
	if err := c.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	if err := c.gui.SetKeybinding(c.inputView, gocui.KeyEnter, gocui.ModNone,
		c.handleInput); err != nil {
		return err
	}

	return c.gui.SetKeybinding("", gocui.KeyTab, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			nextView := map[string]string{
				c.msgView:   c.userView,
				c.userView:  c.inputView,
				c.inputView: c.msgView,
			}
			if v == nil {
				return nil
			}
			if next, ok := nextView[v.Name()]; ok {
				_, err := g.SetCurrentView(next)
				return err
			}
			return nil
		})
}

func (c *Console) handleInput(_ *gocui.Gui, v *gocui.View) error {
	announce(c.relay, v.Buffer())
	v.Clear()
	v.SetCursor(0, 0)
	return nil
}

// announce broadcasts the operator's input; blank input is ignored.
func announce(r Relay, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	r.Announce(input)
	return true
}

// follow hands every hub message to show as a traffic line until ctx is
// done or the hub closes.
func follow(ctx context.Context, hub *relay.Hub, show func(string)) {
	sub := hub.Subscribe()
	defer sub.Close()
	for {
		msg, err := sub.Recv(ctx)
		var lag *relay.LagError
		switch {
		case errors.As(err, &lag):
			show(fmt.Sprintf("-- %d message(s) skipped --", lag.Skipped))
			continue
		case err != nil:
			return
		}
		show(trafficLine(time.Now(), msg))
	}
}

func (c *Console) showTraffic(line string) {
	c.appendTraffic(line)
	c.refresh()
}

func (c *Console) appendTraffic(line string) {
	c.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(c.msgView)
		if err != nil {
			// not laid out yet
			return nil
		}
		fmt.Fprintln(v, line)
		return nil
	})
}

// refresh redraws the users and status views from the registry.
func (c *Console) refresh() {
	users := c.relay.Users()
	c.gui.Update(func(g *gocui.Gui) error {
		if v, err := g.View(c.userView); err == nil {
			v.Clear()
			fmt.Fprint(v, userLines(users))
		}
		if v, err := g.View(c.statusView); err == nil {
			v.Clear()
			fmt.Fprint(v, statusLine(c.status, users))
		}
		return nil
	})
}

// Run shows the console until the operator quits or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	defer c.gui.Close()
	if err := c.keybindings(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go follow(ctx, c.relay.Hub(), c.showTraffic)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.refresh()
			case <-ctx.Done():
				c.gui.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
				return
			}
		}
	}()

	if err := c.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func trafficLine(at time.Time, msg relay.Message) string {
	stamp := at.Format("15:04:05")
	if msg.Kind == relay.KindBoard {
		return fmt.Sprintf("[%s][board] %s", stamp, msg.Text)
	}
	return fmt.Sprintf("[%s] %s", stamp, msg.Text)
}

func statusLine(status string, users []relay.User) string {
	return fmt.Sprintf("%s | %d online | Ctrl-C: quit | Tab: switch views", status, len(users))
}

func userLines(users []relay.User) string {
	var b strings.Builder
	for _, u := range users {
		fmt.Fprintf(&b, "%s (%s)\n", u.Name, u.Addr)
	}
	return b.String()
}
