package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/config"
	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/output"
	"github.com/satchel-app/satchel/internal/store"
	"github.com/satchel-app/satchel/internal/syncer"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Short:   "Watch connectivity, the pending queue, and sync activity live",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		s, probe, err := buildMonitoredSyncer(st)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		go probe.Run(ctx)
		go func() {
			_ = s.RunAuto(ctx, syncer.AutoConfig{
				Debounce: cfg.AutoDebounce(),
				Interval: cfg.AutoInterval(),
			})
		}()

		events, unsubscribe := s.Events().Subscribe()
		defer unsubscribe()

		model := newMonitorModel(st, events)
		_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
		return err
	},
}

const monitorHistory = 12

var (
	monitorOnlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	monitorOfflineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	monitorHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	monitorDimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type monitorModel struct {
	st      *store.Store
	events  <-chan syncer.Event
	spinner spinner.Model

	online   bool
	syncing  bool
	stats    store.QueueStats
	lastSync *models.SyncSummary
	log      []string
}

type syncEventMsg syncer.Event

type statsTickMsg time.Time

func newMonitorModel(st *store.Store, events <-chan syncer.Event) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return monitorModel{st: st, events: events, spinner: sp}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent(), statsTick())
}

// waitForEvent blocks on the hub channel and delivers the next event as a
// bubbletea message.
func (m monitorModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return tea.Quit()
		}
		return syncEventMsg(ev)
	}
}

func statsTick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case syncEventMsg:
		m.apply(syncer.Event(msg))
		return m, m.waitForEvent()

	case statsTickMsg:
		if stats, err := m.st.GetQueueStats(); err == nil {
			m.stats = stats
		}
		return m, statsTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *monitorModel) apply(ev syncer.Event) {
	switch ev.Type {
	case syncer.EventOnline:
		m.online = true
		m.pushLog("connection restored")
	case syncer.EventOffline:
		m.online = false
		m.pushLog("connection lost; queueing changes")
	case syncer.EventSyncStarted:
		m.syncing = true
		m.pushLog("sync pass started")
	case syncer.EventSyncComplete:
		m.syncing = false
		m.lastSync = ev.Summary
		if ev.Summary != nil {
			m.pushLog(fmt.Sprintf("sync pass: %d ok, %d failed, %d conflicts",
				ev.Summary.Succeeded, ev.Summary.Failed, ev.Summary.Conflicts))
		}
	case syncer.EventConflictDetected:
		m.pushLog(fmt.Sprintf("conflict on %s", ev.EntityID))
	}
}

func (m *monitorModel) pushLog(line string) {
	stamp := time.Now().Format("15:04:05")
	m.log = append(m.log, fmt.Sprintf("%s  %s", stamp, line))
	if len(m.log) > monitorHistory {
		m.log = m.log[len(m.log)-monitorHistory:]
	}
}

func (m monitorModel) View() string {
	var b strings.Builder

	b.WriteString(monitorHeaderStyle.Render("satchel monitor"))
	b.WriteString("\n\n")

	status := monitorOfflineStyle.Render("● offline")
	if m.online {
		status = monitorOnlineStyle.Render("● online")
	}
	b.WriteString(status)
	if m.syncing {
		b.WriteString("   " + m.spinner.View() + " syncing")
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "queued %d   terminal %d   conflicted %d\n", m.stats.Queued, m.stats.Terminal, m.stats.Conflicted)
	if m.lastSync != nil {
		fmt.Fprintf(&b, "last pass: %d ok, %d failed, %d conflicts\n",
			m.lastSync.Succeeded, m.lastSync.Failed, m.lastSync.Conflicts)
	}
	b.WriteString("\n")

	if len(m.log) == 0 {
		b.WriteString(monitorDimStyle.Render("waiting for activity..."))
	} else {
		for _, line := range m.log {
			b.WriteString(monitorDimStyle.Render(line))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(monitorDimStyle.Render("q to quit"))
	return b.String()
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
