package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TaskListView ViewState = iota
	HistoryView
)

const (
	refreshInterval = 2 * time.Second
	historyLimit    = 50
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	registry *scheduler.Registry
	progress <-chan tasks.ProgressUpdate
	now      func() time.Time

	width     int
	height    int
	taskList  list.Model
	tasks     []scheduler.TaskInfo
	runList   list.Model
	history   string
	lastEvent string
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates the dashboard over registry. progress may be nil.
func NewModel(ctx context.Context, registry *scheduler.Registry, progress <-chan tasks.ProgressUpdate) *Model {
	taskList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	taskList.Title = "Tasks"
	taskList.SetShowHelp(false)

	runList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	runList.SetShowHelp(false)

	return &Model{
		ctx:      ctx,
		view:     TaskListView,
		registry: registry,
		progress: progress,
		now:      time.Now,
		taskList: taskList,
		runList:  runList,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the task states and starts the refresh tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchTasks(), tick(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.taskList.SetSize(msg.Width-4, msg.Height-6)
		m.runList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TaskListView:
			return m.handleTaskListKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTasksFetched:
		data := msg.data.(tasksFetched)
		m.err = data.err
		if data.err == nil {
			m.setTasks(data.tasks)
		}
		return m, nil

	case MsgRunsFetched:
		data := msg.data.(runsFetched)
		m.err = data.err
		if data.err == nil {
			items := make([]list.Item, len(data.runs))
			for i, run := range data.runs {
				items[i] = runItem{run: run}
			}
			m.history = data.task
			m.runList.Title = fmt.Sprintf("Runs of %s", data.task)
			m.runList.SetItems(items)
			m.view = HistoryView
		}
		return m, nil

	case MsgRunFinished:
		data := msg.data.(runFinished)
		if data.ok {
			m.lastEvent = styles.ok.Render("✓ ") + data.message
		} else {
			m.lastEvent = styles.err.Render("✗ ") + data.message
		}
		return m, m.fetchTasks()

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.lastEvent = styles.help.Render(update.Phase.String()+": ") + update.Message
		return m, m.waitForProgress()

	case MsgTick:
		return m, tea.Batch(m.fetchTasks(), tick())
	}
	return m, nil
}

func (m *Model) setTasks(infos []scheduler.TaskInfo) {
	m.tasks = infos
	now := m.now()
	items := make([]list.Item, len(infos))
	for i, info := range infos {
		items[i] = taskItem{info: info, now: now}
	}
	m.taskList.SetItems(items)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case HistoryView:
		body = m.runList.View() + "\n" + m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	default:
		body = m.taskList.View() + "\n" + m.help.ShortHelpView(m.keys.ShortHelp())
	}

	if m.err != nil {
		body += "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.lastEvent != "" {
		body += "\n" + m.lastEvent
	}
	return body
}

func (m *Model) selectedTask() (scheduler.TaskInfo, bool) {
	item, ok := m.taskList.SelectedItem().(taskItem)
	if !ok {
		return scheduler.TaskInfo{}, false
	}
	return item.info, true
}

func (m *Model) handleTaskListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.taskList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchTasks()
	case key.Matches(msg, m.keys.history):
		if info, ok := m.selectedTask(); ok {
			return m, m.fetchRuns(info.Name)
		}
		return m, nil
	case key.Matches(msg, m.keys.run), key.Matches(msg, m.keys.force):
		info, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		force := key.Matches(msg, m.keys.force)
		m.lastEvent = styles.warn.Render("▶ ") + "starting " + info.Name
		return m, tea.Batch(m.runTask(info.Name, force), m.fetchTasksAfter(100*time.Millisecond))
	case key.Matches(msg, m.keys.toggle):
		if info, ok := m.selectedTask(); ok {
			return m, m.setEnabled(info.Name, !info.Enabled)
		}
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = TaskListView
		return m, m.fetchTasks()
	}
	return m.updateLists(msg)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case TaskListView:
		m.taskList, cmd = m.taskList.Update(msg)
	case HistoryView:
		m.runList, cmd = m.runList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchTasks() tea.Cmd {
	return func() tea.Msg {
		infos, err := m.registry.States(m.ctx)
		return tasksFetchedMsg(infos, err)
	}
}

func (m *Model) fetchTasksAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		infos, err := m.registry.States(m.ctx)
		return tasksFetchedMsg(infos, err)
	})
}

func (m *Model) fetchRuns(name string) tea.Cmd {
	return func() tea.Msg {
		runs, err := m.registry.History(m.ctx, name, historyLimit)
		return runsFetchedMsg(name, runs, err)
	}
}

// runTask runs a task off the update loop; the registry's single-flight guard rejects
// a second start while the first is still running.
func (m *Model) runTask(name string, force bool) tea.Cmd {
	return func() tea.Msg {
		ok, message := m.registry.Run(m.ctx, name, force)
		return runFinishedMsg(name, ok, message)
	}
}

func (m *Model) setEnabled(name string, enabled bool) tea.Cmd {
	return func() tea.Msg {
		if err := m.registry.SetEnabled(m.ctx, name, enabled); err != nil {
			return tasksFetchedMsg(nil, err)
		}
		infos, err := m.registry.States(m.ctx)
		return tasksFetchedMsg(infos, err)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-m.progress
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
