package cache

import (
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	NothingToUndoErr ConstError = "nothing to undo"
	NothingToRedoErr ConstError = "nothing to redo"
)

// Generations tracks which cached writes are visible. Writes are tagged with
// Current. Every generation up to Max has been committed; while Current is
// at most Max the generations from Current on are redo history.
type Generations struct {
	Current    uint32 `json:"current"`
	Checkpoint uint32 `json:"checkpoint"`
	Max        uint32 `json:"max"`
}

func NewGenerations() Generations {
	return Generations{Current: 1, Checkpoint: 1}
}

func (g Generations) CanUndo() bool { return g.Current > 1 }

func (g Generations) CanRedo() bool { return g.Current <= g.Max }

// Unsaved reports whether the visible state differs from the state last
// persisted to the backing store.
func (g Generations) Unsaved() bool { return g.Current != g.Checkpoint }

// InProgress reports whether writes tagged Current are visible.
func (g Generations) InProgress() bool { return g.Current > g.Max }

// Advance commits the current generation.
func (g *Generations) Advance() {
	g.Max = g.Current
	g.Current++
}

func (g *Generations) Retreat() error {
	if !g.CanUndo() {
		return fmt.Errorf("retreating from generation `%d`: %w", g.Current, NothingToUndoErr)
	}
	g.Current--
	return nil
}

func (g *Generations) Redo() error {
	if !g.CanRedo() {
		return fmt.Errorf("redoing generation `%d`: %w", g.Current, NothingToRedoErr)
	}
	g.Current++
	return nil
}

// Truncate discards the redo history.
func (g *Generations) Truncate() { g.Max = g.Current - 1 }

func (g *Generations) SetCheckpoint() { g.Checkpoint = g.Current }
