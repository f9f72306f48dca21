// Package index manages the lifecycle of aliased index generations:
// creation, population, capture of writes that land during a rebuild,
// atomic alias cutover and retirement of the old generation.
package index

import (
	"time"

	"github.com/Aman-CERP/searchkit/internal/backend"
)

// Mode is re-exported so callers of the manager need not import backend.
type Mode = backend.Mode

const (
	ModeAsync    = backend.ModeAsync
	ModeBlocking = backend.ModeBlocking
)

// State is the lifecycle state of one alias.
type State int

const (
	StateNoIndex State = iota
	StateCreating
	StatePopulating
	StateSettingAlias
	StateLive
	StateRebuilding
	StateCuttingOver
	StateRetiring
)

var stateNames = [...]string{
	StateNoIndex:      "no_index",
	StateCreating:     "creating",
	StatePopulating:   "populating",
	StateSettingAlias: "setting_alias",
	StateLive:         "live",
	StateRebuilding:   "rebuilding",
	StateCuttingOver:  "cutting_over",
	StateRetiring:     "retiring",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// busy reports whether a create or rebuild is running in this state.
func (s State) busy() bool {
	switch s {
	case StateNoIndex, StateLive:
		return false
	}
	return true
}

// Phase identifies one progress event of CreateAndInitializeIndex.
type Phase int

const (
	PhaseCreateIndex Phase = iota
	PhaseAddDocuments
	PhaseSetAlias
	PhaseProcessDelta
	PhaseDeleteOldIndex
	PhaseEnd
	PhaseError
)

var phaseNames = [...]string{
	PhaseCreateIndex:    "create_index",
	PhaseAddDocuments:   "add_documents",
	PhaseSetAlias:       "set_alias",
	PhaseProcessDelta:   "process_delta",
	PhaseDeleteOldIndex: "delete_old_index",
	PhaseEnd:            "end",
	PhaseError:          "error",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Event reports progress of a create or rebuild. Processed and Total count
// documents of the current phase; Total is -1 when the source cannot tell.
type Event struct {
	Alias     string
	Index     string
	Phase     Phase
	Processed int
	Total     int
	Failed    int
	Err       error
}

// ProgressListener receives events in order. OnEvent is called from the
// goroutine running the operation and must not block for long.
type ProgressListener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to ProgressListener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

type nopListener struct{}

func (nopListener) OnEvent(Event) {}

// Generation describes one physical index behind an alias.
type Generation struct {
	Alias     string    `json:"alias"`
	Index     string    `json:"index"`
	Version   int       `json:"version"`
	State     State     `json:"-"`
	StateName string    `json:"state"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Preset holds the per-alias index settings and population tuning.
type Preset struct {
	Settings  backend.IndexSettings
	BatchSize int
	Workers   int
}

// PresetProvider supplies the preset of an alias at the time an index is
// created.
type PresetProvider interface {
	Preset(alias string) Preset
}

// PresetFunc adapts a function to PresetProvider.
type PresetFunc func(alias string) Preset

func (f PresetFunc) Preset(alias string) Preset { return f(alias) }
