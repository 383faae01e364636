package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Close key.Binding
	Open  key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Close: key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove file")),
		Open:  key.NewBinding(key.WithKeys("o", "enter"), key.WithHelp("o", "open folder")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Close, k.Open, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Close, k.Open}, {k.Help, k.Quit}}
}
