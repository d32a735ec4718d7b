package main

import (
	"fmt"
	"log"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/spf13/pflag"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/debuglog"
	"github.com/itohio/goxing/pkg/pipeline"
	"github.com/itohio/goxing/pkg/scope"
	"github.com/itohio/goxing/pkg/sensor"
)

func main() {
	flags := pflag.NewFlagSet("xing", pflag.ExitOnError)
	var (
		portFlag           = flags.StringP("port", "p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flags.String("config", "config.yaml", "Configuration file path")
		deviceFlag         = flags.String("device", pipeline.DeviceSerial, "Sensor device: serial, gpio or mock")
		averageSamplesFlag = flags.Int("average-samples", -1, "Number of echoes to average (0 = disabled, overrides config)")
	)
	_ = flags.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override average samples if provided via command line
	if *averageSamplesFlag >= 0 {
		cfg.Measurement.AverageSamples = *averageSamplesFlag
	}

	logger, err := debuglog.New(&cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to open debug channel: %v", err)
	}
	defer logger.Close()

	port := cfg.Serial.Port
	if *portFlag != "" {
		port = *portFlag
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.goxing")

	// Create main window
	window := application.NewWindow("Crossing Monitor")
	window.Resize(fyne.NewSize(1000, 700))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		log:        logger,
		deviceKind: *deviceFlag,
		port:       port,
		detector:   crossing.New(cfg, logger),
		history:    newHistory(scope.DefaultWindow + scope.DefaultWindow/2),
		window:     window,
	}

	toolbar := createToolbar(state)
	state.scopeWidget = scope.New(cfg)

	// Register detector callbacks once; every chain feeds the same detector.
	state.detector.OnUpdate(state.handleUpdate)
	state.detector.OnEvent(state.handleEvent)

	content := container.NewBorder(
		toolbar,
		nil,
		nil,
		createEventPanel(state),
		state.scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		state.disconnect()
	})
	window.ShowAndRun()
}

// createToolbar creates the toolbar with Connect and Settings buttons and the
// live counters.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.statusLabel = widget.NewLabel("Disconnected")
	state.countsLabel = widget.NewLabel(formatCounts(crossing.Counts{}))
	state.occupancy = [2]*widget.Label{
		widget.NewLabel(formatOccupancy(sensor.Left, false)),
		widget.NewLabel(formatOccupancy(sensor.Right, false)),
	}

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn, state.statusLabel),                 // left
		container.NewHBox(state.occupancy[0], state.occupancy[1], state.countsLabel), // right
		nil, // center (spacer)
	)
}

// createEventPanel creates the list of recent crossings.
func createEventPanel(state *appState) fyne.CanvasObject {
	state.eventList = widget.NewList(
		func() int {
			return len(state.events)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("00:00:00 right 0.00s")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			// Newest first
			ev := state.events[len(state.events)-1-id]
			obj.(*widget.Label).SetText(formatEvent(ev, state.cfg.Location()))
		},
	)

	panel := container.NewBorder(widget.NewLabel("Recent crossings"), nil, nil, nil, state.eventList)
	return container.NewGridWrap(fyne.NewSize(240, 600), panel)
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.connected() {
		state.disconnect()
		state.statusLabel.SetText("Disconnected")
		return
	}

	if err := state.connect(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	state.statusLabel.SetText(fmt.Sprintf("Connected (%s)", state.deviceLabel()))
}
