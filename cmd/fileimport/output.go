// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/fileimport/internal/convert"
	"github.com/pdiddy/fileimport/internal/export"
	"github.com/pdiddy/fileimport/internal/history"
	"github.com/pdiddy/fileimport/internal/library"
	"github.com/pdiddy/fileimport/pkg/types"
)

var (
	styleDone     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleFailed   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleInactive = lipgloss.NewStyle().Faint(true)
	styleHeader   = lipgloss.NewStyle().Bold(true)
)

// renderStatus pads s to width before styling so ANSI codes do not break
// column alignment.
func renderStatus(s types.ExportStatus, width int) string {
	text := fmt.Sprintf("%-*s", width, s)
	switch s {
	case types.ExportDone:
		return styleDone.Render(text)
	case types.ExportFailed:
		return styleFailed.Render(text)
	case types.ExportInProgress, types.ExportAborted:
		return styleRunning.Render(text)
	default:
		return styleInactive.Render(text)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// workspace bundles the components a command needs. Close releases them.
type workspace struct {
	lib     *library.Library
	store   *history.Store
	manager *export.Manager
}

func openWorkspace(cfg types.Config) (*workspace, error) {
	lib, err := library.Open(cfg.Library)
	if err != nil {
		return nil, err
	}
	store, err := history.NewStore(cfg.History)
	if err != nil {
		return nil, err
	}
	conv := convert.NewFromConfig(cfg.Converter)
	return &workspace{
		lib:     lib,
		store:   store,
		manager: export.NewManager(conv, lib, store, nil),
	}, nil
}

func (ws *workspace) Close() error {
	return ws.store.Close()
}

// followJob renders a progress bar for job on w until it finishes.
func followJob(w io.Writer, job *export.Job) error {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	label := job.File.Name + job.Format.Extension()

	fmt.Fprintf(w, "%-24s %s", label, bar.ViewAs(0))
	for f := range job.Progress() {
		fmt.Fprintf(w, "\r%-24s %s", label, bar.ViewAs(f))
	}
	err := job.Wait()
	if err == nil {
		fmt.Fprintf(w, "\r%-24s %s", label, bar.ViewAs(1))
	}
	fmt.Fprintln(w)
	return err
}
