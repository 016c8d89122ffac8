// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

var (
	loadedColor   = color.New(color.FgGreen)
	unloadedColor = color.New(color.FgYellow)
	brokenColor   = color.New(color.FgHiRed, color.Bold)
	okColor       = color.New(color.FgGreen)
	failColor     = color.New(color.FgHiRed)
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnSeparator(" ")
	return table
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// writeLoadOrder prints descriptors in the order they would be loaded.
func writeLoadOrder(w io.Writer, infos []pluginpkg.Info) {
	table := newTable(w, "#", "Name", "Engine", "Version", "Dependencies")
	for i, info := range infos {
		table.Append([]string{
			strconv.Itoa(i + 1),
			info.Name,
			info.Engine,
			orDash(info.Version),
			joinOrDash(info.Dependencies),
		})
	}
	table.Render()
}

func stateColor(s plugins.State) *color.Color {
	switch s {
	case plugins.StateLoaded:
		return loadedColor
	case plugins.StateBroken:
		return brokenColor
	default:
		return unloadedColor
	}
}

// writeStatus prints a manager snapshot.
func writeStatus(w io.Writer, statuses []plugins.Status) {
	table := newTable(w, "Name", "State", "Engine", "Version", "Started", "Required By")
	for _, s := range statuses {
		started := "-"
		if s.State == plugins.StateLoaded {
			started = strconv.FormatBool(s.Started)
		}
		table.Append([]string{
			s.Name,
			stateColor(s.State).Sprint(s.State.String()),
			s.Engine,
			orDash(s.Version),
			started,
			joinOrDash(s.RequiredBy),
		})
	}
	table.Render()
}
