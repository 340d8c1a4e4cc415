package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/tasks"
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
	MsgGenerated MsgKind = iota
	MsgRecordsLoaded
	MsgDeleted
	MsgDownloaded
	MsgOpened
	MsgProgressUpdate
)

type generatedData struct {
	record models.MediaRecord
	err    error
}

type deletedData struct {
	count int
	err   error
}

type downloadedData struct {
	path  string
	bytes int64
	err   error
}

type progressData struct {
	update tasks.ProgressUpdate
	ch     <-chan tasks.ProgressUpdate
}

// generatedMsg is the constructor for [MsgGenerated]
func generatedMsg(rec models.MediaRecord, err error) Msg {
	return Msg{kind: MsgGenerated, data: generatedData{rec, err}}
}

// recordsLoadedMsg is the constructor for [MsgRecordsLoaded]
func recordsLoadedMsg(err error) Msg {
	return Msg{kind: MsgRecordsLoaded, data: err}
}

// deletedMsg is the constructor for [MsgDeleted]
func deletedMsg(n int, err error) Msg {
	return Msg{kind: MsgDeleted, data: deletedData{n, err}}
}

// downloadedMsg is the constructor for [MsgDownloaded]
func downloadedMsg(path string, n int64, err error) Msg {
	return Msg{kind: MsgDownloaded, data: downloadedData{path, n, err}}
}

// openedMsg is the constructor for [MsgOpened]
func openedMsg(err error) Msg {
	return Msg{kind: MsgOpened, data: err}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate, ch <-chan tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: progressData{update, ch}}
}
