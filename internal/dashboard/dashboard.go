// Package dashboard renders a live terminal UI for an in-flight sweep.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"rtdrive/internal/metrics"
)

// SweepConfig holds run parameters for display.
type SweepConfig struct {
	TargetURL  string
	Model      string
	Scenario   string
	Levels     []int
	Stagger    time.Duration
	Hold       time.Duration
	ConfigFile string
}

// Dashboard renders live sweep metrics with termui.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid            *ui.Grid
	durationSparkle *widgets.SparklineGroup
	durationPara    *widgets.Paragraph
	rateGauge       *widgets.Gauge
	errorList       *widgets.List
	summaryPara     *widgets.Paragraph
	metricsPara     *widgets.Paragraph
	durationHistory []float64
	startTime       time.Time
	sweepDuration   time.Duration
	cfg             SweepConfig

	levelMu      sync.Mutex
	currentLevel int
}

// New creates a new Dashboard.
func New(collector *metrics.Collector, cfg SweepConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:       collector,
		ctx:             ctx,
		cancel:          cancel,
		shutdownFunc:    shutdownFunc,
		durationHistory: make([]float64, 0, 100),
		startTime:       time.Now(),
		cfg:             cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// SetLevel records the concurrency level currently running.
func (d *Dashboard) SetLevel(concurrency int) {
	d.levelMu.Lock()
	d.currentLevel = concurrency
	d.levelMu.Unlock()
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Session Duration (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.durationSparkle = widgets.NewSparklineGroup(sparkline)
	d.durationSparkle.Title = "Real-time Session Duration"
	d.durationSparkle.BorderStyle.Fg = ui.ColorCyan

	d.durationPara = widgets.NewParagraph()
	d.durationPara.Title = "Duration Stats"
	d.durationPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.durationPara.BorderStyle.Fg = ui.ColorCyan

	d.rateGauge = widgets.NewGauge()
	d.rateGauge.Title = "Sessions Per Second"
	d.rateGauge.Percent = 0
	d.rateGauge.BarColor = ui.ColorBlue
	d.rateGauge.BorderStyle.Fg = ui.ColorCyan
	d.rateGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Sweep Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.5, d.rateGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.65, d.durationSparkle),
			ui.NewCol(0.35, d.durationPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(1.0, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and cleans up.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.sweepDuration = time.Since(d.startTime)
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// FinalStats returns the statistics after the dashboard has stopped.
func (d *Dashboard) FinalStats() metrics.Stats {
	return d.collector.Stats(d.sweepDuration)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats(elapsed)

	if stats.MeanDuration > 0 {
		durationMs := stats.MeanDurationMs
		d.durationHistory = append(d.durationHistory, durationMs)
		if len(d.durationHistory) > 100 {
			d.durationHistory = d.durationHistory[1:]
		}
		d.durationSparkle.Sparklines[0].Data = d.durationHistory
		d.durationSparkle.Title = fmt.Sprintf(
			"Real-time Session Duration | Current: %.2fms | Min: %.2fms | Max: %.2fms",
			durationMs,
			stats.MinDurationMs,
			stats.MaxDurationMs,
		)
	}

	currentRate := stats.SessionsPerSec
	maxRate := 50.0
	if currentRate > maxRate {
		maxRate = currentRate
	}
	ratePercent := int((currentRate / maxRate) * 100)
	if ratePercent > 100 {
		ratePercent = 100
	}
	d.rateGauge.Percent = ratePercent
	d.rateGauge.Label = fmt.Sprintf("%.1f sessions/s", currentRate)

	successRate := 0.0
	if stats.Total > 0 {
		successRate = (float64(stats.Successes) / float64(stats.Total)) * 100
	}

	d.levelMu.Lock()
	level := d.currentLevel
	d.levelMu.Unlock()

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Level: %d | Total: %d | Success Rate: %.1f%%",
		d.cfg.TargetURL,
		d.formatSweepParams(),
		elapsed.Round(time.Second),
		level,
		stats.Total,
		successRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Sessions:    %d\nSuccessful:        %d\nFailed:            %d\nCurrent Rate:      %.2f/s\nSuccess Rate:      %.1f%%\nMin Duration:      %.2fms\nMean Duration:     %.2fms\nP50/P90/P99:       %.2f / %.2f / %.2f ms",
		stats.Total,
		stats.Successes,
		stats.Failures,
		currentRate,
		successRate,
		stats.MinDurationMs,
		stats.MeanDurationMs,
		stats.P50DurationMs,
		stats.P90DurationMs,
		stats.P99DurationMs,
	)

	d.durationPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms",
		stats.MinDurationMs,
		stats.MeanDurationMs,
		stats.P50DurationMs,
		stats.P90DurationMs,
		stats.P99DurationMs,
	)

	d.errorList.Rows = formatErrorRows(stats.Errors)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func formatErrorRows(errors map[string]int) []string {
	if len(errors) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	descs := make([]string, 0, len(errors))
	for desc := range errors {
		descs = append(descs, desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		if errors[descs[i]] == errors[descs[j]] {
			return descs[i] < descs[j]
		}
		return errors[descs[i]] > errors[descs[j]]
	})
	maxRows := len(descs)
	if maxRows > 10 {
		maxRows = 10
	}
	formatted := make([]string, 0, maxRows)
	for i := 0; i < maxRows; i++ {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", descs[i], errors[descs[i]]))
	}
	return formatted
}

func (d *Dashboard) formatSweepParams() string {
	var parts []string

	if d.cfg.Model != "" {
		parts = append(parts, fmt.Sprintf("Model: %s", d.cfg.Model))
	}
	if d.cfg.Scenario != "" {
		parts = append(parts, fmt.Sprintf("Scenario: %s", d.cfg.Scenario))
	}
	if len(d.cfg.Levels) > 0 {
		levels := make([]string, 0, len(d.cfg.Levels))
		for _, l := range d.cfg.Levels {
			levels = append(levels, fmt.Sprintf("%d", l))
		}
		parts = append(parts, fmt.Sprintf("Levels: %s", strings.Join(levels, ",")))
	}
	if d.cfg.Stagger > 0 {
		parts = append(parts, fmt.Sprintf("Stagger: %s", d.cfg.Stagger))
	}
	if d.cfg.Hold > 0 {
		parts = append(parts, fmt.Sprintf("Hold: %s", d.cfg.Hold))
	}
	if d.cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.cfg.ConfigFile))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, " | ")
}
