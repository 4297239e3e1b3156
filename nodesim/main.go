package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/wisnode/pkg/config"
	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/history"
	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/node"
	"github.com/itohio/wisnode/pkg/scope"
)

func main() {
	var (
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		headlessFlag = flag.Bool("headless", false, "Run without a window, logging every cycle")
		backendFlag  = flag.String("backend", "", "Radio backend override: mock, mqtt, modem or abp")
		portFlag     = flag.Int("port", 0, "LoRaWAN FPort override (selects the sensor fields)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *backendFlag != "" {
		cfg.Radio.Backend = *backendFlag
	}
	if *portFlag > 0 {
		cfg.Node.Port = uint8(*portFlag)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.New(os.Stderr, level)

	if *headlessFlag {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runHeadless(ctx, cfg, logger); err != nil {
			log.Fatal(err)
		}
		return
	}

	application := app.NewWithID("com.itohio.wisnode")

	window := application.NewWindow("WisNode Simulator")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:     cfg,
		cfgPath: *configFlag,
		log:     logger,
		window:  window,
	}

	toolbar := createToolbar(state)
	state.scopeWidget = scope.New(cfg.Trigger.TurbidityNTU)

	content := container.NewBorder(
		toolbar,
		createStatusPanel(state),
		nil,
		createControls(state),
		state.scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() { stopNode(state, nil) })
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg     *config.Config
	cfgPath string
	log     *logging.Logger
	window  fyne.Window

	// running node, nil when stopped
	node   *node.Node
	cancel context.CancelFunc
	done   chan error

	scopeWidget *scope.ScopeWidget
	startBtn    *widget.Button
	sendBtn     *widget.Button
	linkCheck   *widget.Check
	status      statusLabels

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the toolbar with Start, Send now and Settings buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	startBtn := widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		handleStartStop(state)
	})
	state.startBtn = startBtn

	sendBtn := widget.NewButtonWithIcon("Send now", theme.MailSendIcon(), func() {
		if state.node != nil {
			state.node.SendNow()
		}
	})
	sendBtn.Disable()
	state.sendBtn = sendBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	clearBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		if state.node != nil {
			state.node.History.Clear()
		}
		state.scopeWidget.UpdateData(nil, nil)
	})

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(startBtn, sendBtn, settingsBtn), // left
		container.NewHBox(clearBtn),                      // right
		nil, // center (spacer)
	)
}

// handleStartStop starts the node or stops the running one.
func handleStartStop(state *appState) {
	if state.node != nil {
		// no restart until the old node has released its link
		state.startBtn.Disable()
		state.sendBtn.Disable()
		state.linkCheck.Disable()
		stopNode(state, func() {
			state.startBtn.SetIcon(theme.MediaPlayIcon())
			state.startBtn.Enable()
			state.log.Infof("Node stopped")
		})
		return
	}

	n, err := node.New(state.cfg, state.log)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to start node: %w", err), state.window)
		return
	}
	state.node = n
	applyControls(state)

	// Throttle scope updates to ~30 FPS
	const updateInterval = 33 * time.Millisecond
	n.History.OnUpdate(func(points []history.Point, episodes []history.Episode) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		UpdateWidgetOnMainThread(func() {
			state.scopeWidget.UpdateData(points, episodes)
		})
	})
	n.Controller.OnCycle(func(r dutycycle.Report) {
		st := n.Controller.State()
		UpdateWidgetOnMainThread(func() {
			state.status.update(st, r)
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	state.cancel = cancel
	state.done = make(chan error, 1)
	go func() {
		err := n.Run(ctx)
		state.done <- err
		if err != nil && ctx.Err() == nil {
			UpdateWidgetOnMainThread(func() {
				dialog.ShowError(err, state.window)
				handleStartStop(state)
			})
		}
	}()

	go pollState(ctx, state, n)

	state.startBtn.SetIcon(theme.MediaStopIcon())
	state.sendBtn.Enable()
	state.linkCheck.Enable()
}

// pollState refreshes the task and mode labels between cycles.
func pollState(ctx context.Context, state *appState, n *node.Node) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := n.Controller.State()
			on := n.Power.On()
			UpdateWidgetOnMainThread(func() {
				state.status.updateState(st, on)
			})
		}
	}
}

// stopNode cancels the running node and returns at once. The loop is
// waited for and the node closed in the background, then stopped runs on
// the UI goroutine.
func stopNode(state *appState, stopped func()) {
	if state.node == nil {
		return
	}
	n, done := state.node, state.done
	state.cancel()
	state.node, state.cancel, state.done = nil, nil, nil

	go awaitStop(n, done, state.log, func() {
		UpdateWidgetOnMainThread(stopped)
	})
}

// awaitStop waits for the node loop to return, closes the node and calls then.
func awaitStop(n io.Closer, done <-chan error, logger *logging.Logger, then func()) {
	<-done
	if err := n.Close(); err != nil {
		logger.Warnf("close: %v", err)
	}
	then()
}
