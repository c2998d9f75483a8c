package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTasksFetched MsgKind = iota
	MsgRunsFetched
	MsgRunFinished
	MsgProgressUpdate
	MsgTick
)

type tasksFetched struct {
	tasks []scheduler.TaskInfo
	err   error
}

type runsFetched struct {
	task string
	runs []*models.TaskRun
	err  error
}

type runFinished struct {
	task    string
	ok      bool
	message string
}

// tasksFetchedMsg is the constructor for [MsgTasksFetched]
func tasksFetchedMsg(infos []scheduler.TaskInfo, err error) Msg {
	return Msg{kind: MsgTasksFetched, data: tasksFetched{infos, err}}
}

// runsFetchedMsg is the constructor for [MsgRunsFetched]
func runsFetchedMsg(task string, runs []*models.TaskRun, err error) Msg {
	return Msg{kind: MsgRunsFetched, data: runsFetched{task, runs, err}}
}

// runFinishedMsg is the constructor for [MsgRunFinished]
func runFinishedMsg(task string, ok bool, message string) Msg {
	return Msg{kind: MsgRunFinished, data: runFinished{task, ok, message}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}
