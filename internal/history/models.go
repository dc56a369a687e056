package history

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind classifies a lifecycle event.
type Kind string

const (
	KindSpawned     Kind = "spawned"
	KindRejected    Kind = "rejected"
	KindSpawnFailed Kind = "spawn_failed"
	KindStopped     Kind = "stopped"
	KindAlreadyGone Kind = "already_gone"
	KindStopFailed  Kind = "stop_failed"
	KindNotRunning  Kind = "not_running"
	KindCorruptPID  Kind = "corrupt_pid"
)

var titleCaser = cases.Title(language.English)

// Label renders the kind for humans, e.g. "Spawn Failed".
func (k Kind) Label() string {
	if k == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(string(k), "_", " "))
}

// Event is a single journal entry.
type Event struct {
	ID         int64
	Kind       Kind
	PID        int
	Volume     float64
	PIDFile    string
	SessionID  string
	Detail     string
	RecordedAt time.Time
}
