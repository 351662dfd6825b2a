package cache

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	. "github.com/weberc2/tidisk/pkg/types"
)

type backingFake struct {
	sectors map[uint32]Sector
	writes  int
}

func newBackingFake() *backingFake {
	return &backingFake{sectors: make(map[uint32]Sector)}
}

func (b *backingFake) ReadSector(number uint32) (Sector, error) {
	if number >= 1000 {
		return Sector{}, fmt.Errorf("sector `%d`: %w", number, NotFoundErr)
	}
	sector := b.sectors[number]
	sector.Number = number
	return sector, nil
}

func (b *backingFake) WriteSector(sector Sector) error {
	b.writes++
	b.sectors[sector.Number] = sector
	return nil
}

// prefix returns the first `n` bytes stored for sector `number`.
func (b *backingFake) prefix(number uint32, n int) string {
	sector := b.sectors[number]
	return string(sector.Content[:n])
}

func content(s string) []byte { return []byte(s) }

func expectContent(t *testing.T, c *Cache, number uint32, wanted string) {
	t.Helper()
	sector, err := c.ReadSector(number)
	if err != nil {
		t.Fatalf("ReadSector(%d): unexpected err: %v", number, err)
	}
	if found := string(sector.Content[:len(wanted)]); found != wanted {
		t.Fatalf("ReadSector(%d): wanted `%s`; found `%s`", number, wanted, found)
	}
}

func TestGenerations(t *testing.T) {
	g := NewGenerations()
	if g.CanUndo() || g.CanRedo() || g.Unsaved() || !g.InProgress() {
		t.Fatalf("NewGenerations(): unexpected state `%+v`", g)
	}
	g.Advance()
	if !g.CanUndo() || g.CanRedo() || !g.Unsaved() {
		t.Fatalf("after Advance(): unexpected state `%+v`", g)
	}
	g.SetCheckpoint()
	if err := g.Retreat(); err != nil {
		t.Fatalf("Retreat(): unexpected err: %v", err)
	}
	if g.CanUndo() || !g.CanRedo() || !g.Unsaved() || g.InProgress() {
		t.Fatalf("after Retreat(): unexpected state `%+v`", g)
	}
	if err := g.Retreat(); !errors.Is(err, NothingToUndoErr) {
		t.Fatalf("Retreat(): wanted `%v`; found `%v`", NothingToUndoErr, err)
	}
	if err := g.Redo(); err != nil {
		t.Fatalf("Redo(): unexpected err: %v", err)
	}
	if g.Unsaved() || g.CanRedo() {
		t.Fatalf("after Redo(): unexpected state `%+v`", g)
	}
	if err := g.Redo(); !errors.Is(err, NothingToRedoErr) {
		t.Fatalf("Redo(): wanted `%v`; found `%v`", NothingToRedoErr, err)
	}
}

func TestCache_GenerationLaw(t *testing.T) {
	backing := newBackingFake()
	c := New(backing, nil)
	rng := rand.New(rand.NewSource(7))

	// model[g][n] is the content of sector n once generation g is committed
	model := []map[uint32]byte{{}}
	for g := 1; g <= 20; g++ {
		state := make(map[uint32]byte)
		for n, v := range model[g-1] {
			state[n] = v
		}
		for i := 0; i < 5; i++ {
			n := uint32(rng.Intn(16))
			v := byte(rng.Intn(255) + 1)
			if err := c.WriteSector(NewSector(n, []byte{v})); err != nil {
				t.Fatalf("WriteSector(%d): unexpected err: %v", n, err)
			}
			state[n] = v

			// a write is visible at its own generation and invisible below
			at, ok := c.Lookup(n, uint32(g), true)
			if !ok || at.Content[0] != v {
				t.Fatalf("Lookup(%d, %d, inclusive): wanted `%d`; found `%d`", n, g, v, at.Content[0])
			}
			before, ok := c.Lookup(n, uint32(g), false)
			if wanted := model[g-1][n]; !ok || before.Content[0] != wanted {
				t.Fatalf("Lookup(%d, %d): wanted `%d`; found `%d`", n, g, wanted, before.Content[0])
			}
		}
		c.Advance()
		model = append(model, state)
	}

	for g := range model {
		for n := uint32(0); n < 16; n++ {
			sector, ok := c.Lookup(n, uint32(g), true)
			if !ok {
				sector, _ = backing.ReadSector(n)
			}
			if wanted := model[g][n]; sector.Content[0] != wanted {
				t.Fatalf("generation `%d` sector `%d`: wanted `%d`; found `%d`", g, n, wanted, sector.Content[0])
			}
		}
	}
	if backing.writes != 0 {
		t.Fatalf("backing writes: wanted `0`; found `%d`", backing.writes)
	}
}

func TestCache_UndoRedo(t *testing.T) {
	backing := newBackingFake()
	backing.sectors[3] = NewSector(3, content("original"))
	c := New(backing, nil)

	if err := c.WriteSector(NewSector(3, content("first"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	c.Advance()
	if err := c.WriteSector(NewSector(3, content("second"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	c.Advance()
	expectContent(t, c, 3, "second")

	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat(): unexpected err: %v", err)
	}
	expectContent(t, c, 3, "first")
	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat(): unexpected err: %v", err)
	}
	expectContent(t, c, 3, "original")
	if err := c.Redo(); err != nil {
		t.Fatalf("Redo(): unexpected err: %v", err)
	}
	expectContent(t, c, 3, "first")

	// a write after undo discards the redo history
	if err := c.WriteSector(NewSector(4, content("branch"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	if c.Generations().CanRedo() {
		t.Fatal("CanRedo(): wanted `false` after a write")
	}
	expectContent(t, c, 3, "first")
	c.Advance()
	expectContent(t, c, 3, "first")
	expectContent(t, c, 4, "branch")
	if err := c.Redo(); !errors.Is(err, NothingToRedoErr) {
		t.Fatalf("Redo(): wanted `%v`; found `%v`", NothingToRedoErr, err)
	}
}

func TestCache_Rollback(t *testing.T) {
	backing := newBackingFake()
	c := New(backing, nil)
	if err := c.WriteSector(NewSector(1, content("kept"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	c.Advance()
	if err := c.WriteSector(NewSector(1, content("lost"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	if !c.Dirty() {
		t.Fatal("Dirty(): wanted `true`")
	}
	c.Rollback()
	if c.Dirty() {
		t.Fatal("Dirty(): wanted `false` after Rollback()")
	}
	expectContent(t, c, 1, "kept")
}

func TestCache_SameGeneration(t *testing.T) {
	c := New(newBackingFake(), nil)
	if err := c.WriteSector(NewSector(1, content("one"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	c.Advance()
	if err := c.WriteSector(NewSector(1, content("ONE"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	if err := c.WriteSector(NewSector(2, content("two"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	if err := c.SameGeneration(); err != nil {
		t.Fatalf("SameGeneration(): unexpected err: %v", err)
	}
	if c.Dirty() {
		t.Fatal("Dirty(): wanted `false` after SameGeneration()")
	}
	expectContent(t, c, 1, "ONE")
	expectContent(t, c, 2, "two")

	// undoing the amended generation removes both edits at once
	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat(): unexpected err: %v", err)
	}
	sector, err := c.ReadSector(1)
	if err != nil {
		t.Fatalf("ReadSector(1): unexpected err: %v", err)
	}
	if !sector.IsZero() {
		t.Fatalf("ReadSector(1): wanted zeros; found `%q`", sector.Content[:3])
	}
}

func TestCache_PersistAfterUndo(t *testing.T) {
	backing := newBackingFake()
	backing.sectors[5] = NewSector(5, content("disk"))
	c := New(backing, nil)

	if err := c.WriteSector(NewSector(5, content("edit"))); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	c.Advance()
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist(): unexpected err: %v", err)
	}
	c.SetCheckpoint()
	if backing.prefix(5, 4) != "edit" || c.Unsaved() {
		t.Fatal("Persist(): edit not written")
	}

	// undo restores the content captured before the first write
	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat(): unexpected err: %v", err)
	}
	if !c.Unsaved() {
		t.Fatal("Unsaved(): wanted `true` after undo")
	}
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist(): unexpected err: %v", err)
	}
	if found := backing.prefix(5, 4); found != "disk" {
		t.Fatalf("backing sector 5: wanted `disk`; found `%s`", found)
	}
}

func TestCache_WriteUnreadable(t *testing.T) {
	c := New(newBackingFake(), nil)
	if err := c.WriteSector(NewSector(1000, nil)); !errors.Is(err, NotFoundErr) {
		t.Fatalf("WriteSector(1000): wanted `%v`; found `%v`", NotFoundErr, err)
	}
}
