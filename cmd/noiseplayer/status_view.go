package main

import (
	"fmt"

	"noiseplayer/internal/config"
	"noiseplayer/internal/daemonctl"
	"noiseplayer/internal/deps"
	"noiseplayer/internal/preflight"
)

// statusView gathers everything `noiseplayer status` prints.
type statusView struct {
	Status       daemonctl.Status
	ProbeErr     error
	ConfigPath   string
	ConfigErr    error
	Volume       float64
	LogPath      string
	HistoryPath  string
	Checks       []preflight.Result
	Dependencies []deps.Status
}

func runChecks(cfg *config.Config) []preflight.Result {
	return preflight.RunAll(cfg)
}

func checkDependencies(cfg *config.Config) []deps.Status {
	return preflight.CheckSystemDeps(cfg)
}

func (v statusView) lines(colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	lines = append(lines, v.daemonLine(colorize))
	lines = append(lines, renderStatusLine("PID file", statusInfo, v.Status.PIDFile, colorize))
	lines = append(lines, renderStatusLine("Daemon log", statusInfo, v.LogPath, colorize))
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Configuration", colorize)...)
	if v.ConfigErr != nil {
		lines = append(lines, renderStatusLine("Config", statusWarn,
			fmt.Sprintf("%s (using defaults: %v)", trimmedOr(v.ConfigPath, "unknown path"), v.ConfigErr), colorize))
	} else {
		lines = append(lines, renderStatusLine("Config", statusOK, trimmedOr(v.ConfigPath, "defaults"), colorize))
	}
	lines = append(lines, renderStatusLine("Volume", statusInfo, fmt.Sprintf("%g", v.Volume), colorize))
	lines = append(lines, renderStatusLine("History", statusInfo, v.HistoryPath, colorize))
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range v.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	for _, dep := range v.Dependencies {
		lines = append(lines, dependencyLine(dep, colorize))
	}
	return lines
}

func (v statusView) daemonLine(colorize bool) string {
	if v.ProbeErr != nil {
		return renderStatusLine("State", statusError, fmt.Sprintf("probe failed: %v", v.ProbeErr), colorize)
	}
	s := v.Status
	switch s.State {
	case daemonctl.StateRunning:
		if !s.Alive {
			return renderStatusLine("State", statusWarn,
				fmt.Sprintf("lock held but pid %d does not exist", s.PID), colorize)
		}
		return renderStatusLine("State", statusOK, fmt.Sprintf("Running (pid %d)", s.PID), colorize)
	case daemonctl.StateStale:
		msg := fmt.Sprintf("Not running (stale pid %d, lock free)", s.PID)
		if s.Alive {
			msg = fmt.Sprintf("Not running (pid %d now belongs to another process)", s.PID)
		}
		return renderStatusLine("State", statusWarn, msg, colorize)
	case daemonctl.StateCorrupt:
		return renderStatusLine("State", statusError, "Corrupt pid file: "+s.Detail, colorize)
	default:
		return renderStatusLine("State", statusInfo, "Not running", colorize)
	}
}

func dependencyLine(dep deps.Status, colorize bool) string {
	if dep.Available {
		return renderStatusLine(dep.Name, statusOK, fmt.Sprintf("Ready (command: %s)", dep.Path), colorize)
	}
	kind := statusError
	if dep.Optional {
		kind = statusWarn
	}
	detail := dep.Detail
	if dep.Description != "" {
		detail = fmt.Sprintf("%s. %s", dep.Detail, dep.Description)
	}
	return renderStatusLine(dep.Name, kind, detail, colorize)
}
