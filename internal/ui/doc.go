// Package ui implements an interactive task dashboard using bubbletea's Elm architecture.
//
// The dashboard has two views:
//  1. [TaskListView] : every registered task with its interval, last outcome and next run
//  2. [HistoryView] : the recent runs of the selected task
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Task states refresh on a tick; runs started from the dashboard go through the same registry as the
// scheduler loop, so a task already in flight is refused rather than started twice.
// Progress updates flow through a channel from the task pipeline and show under the list.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, r/f, e, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
