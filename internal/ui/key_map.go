package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	history key.Binding
	run     key.Binding
	force   key.Binding
	toggle  key.Binding
	refresh key.Binding
	back    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		history: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "history")),
		run:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run")),
		force:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "force run")),
		toggle:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enable/disable")),
		refresh: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.run, k.force, k.history, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.history},
		{k.run, k.force, k.toggle},
		{k.refresh, k.back, k.quit},
	}
}
