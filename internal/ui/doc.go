// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [GenerateView] : pick a mode and model, type a prompt and style or voice, generate
//  2. [LibraryView] : browse, filter, page, select, download and delete records
//  3. [ConfirmView] : confirm a single or batch delete
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Generation and library work runs in commands against [tasks.Generator] and [tasks.Library]; progress updates
// flow back through a channel so batch deletes and downloads report as they go.
//
// Mode tabs and the library stay navigable while a generation is in flight; only a second
// generate is refused.
//
// Keyboard help is displayed via charmbracelet/bubbles/help.
package ui
