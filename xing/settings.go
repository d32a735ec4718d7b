package main

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goxing/pkg/sensor"
)

// showSettingsDialog displays the port selection and the active configuration.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createValuesTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(500, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(500, 500))
	d.Show()
}

// createSerialTab creates the serial port selection tab.
func createSerialTab(state *appState) *container.TabItem {
	// Get available serial ports
	ports, err := sensor.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentDisplay := state.port
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == state.port {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && state.port != "" {
		portOptions = append(portOptions, state.port)
		portMap[state.port] = state.port
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selectedPort := portMap[portSelect.Selected]
			if selectedPort == "" {
				selectedPort = portSelect.Selected // Fallback to selected text
			}
			if selectedPort == state.port {
				return
			}

			wasConnected := state.connected()
			state.port = selectedPort

			// Port changed while connected: restart the measurement chain
			if wasConnected {
				handleConnect(state)
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createValuesTab lists the named configuration values. The configuration is
// fixed for the lifetime of the process, so the tab is read-only.
func createValuesTab(state *appState) *container.TabItem {
	values := state.cfg.Values()

	items := make([]*widget.FormItem, 0, len(values))
	for _, v := range values {
		text := fmt.Sprint(v.Value)
		if v.Unit != "" {
			text += " " + v.Unit
		}
		items = append(items, widget.NewFormItem(v.Name, widget.NewLabel(text)))
	}

	return container.NewTabItem("Values", container.NewVScroll(widget.NewForm(items...)))
}
