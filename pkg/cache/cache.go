package cache

import (
	"fmt"
	"log/slog"
	"sort"

	. "github.com/weberc2/tidisk/pkg/types"
)

// Backing is the store the cache sits in front of, an image.Image in
// practice.
type Backing interface {
	ReadSector(number uint32) (Sector, error)
	WriteSector(sector Sector) error
}

// Cache keeps every written version of a sector, tagged with the generation
// it was written in. Nothing reaches the backing store before Persist.
type Cache struct {
	backing     Backing
	generations Generations
	entries     map[uint32][]Sector
	logger      *slog.Logger
}

func New(backing Backing, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		backing:     backing,
		generations: NewGenerations(),
		entries:     make(map[uint32][]Sector),
		logger:      logger,
	}
}

func (c *Cache) Generations() Generations { return c.generations }

// Lookup returns the newest version of sector `number` tagged at most
// `generation` (below `generation` unless `inclusive`).
func (c *Cache) Lookup(number, generation uint32, inclusive bool) (Sector, bool) {
	versions := c.entries[number]
	for i := len(versions) - 1; i >= 0; i-- {
		g := versions[i].Generation
		if g < generation || (inclusive && g == generation) {
			return versions[i], true
		}
	}
	return Sector{}, false
}

func (c *Cache) visible(number uint32) (Sector, bool) {
	return c.Lookup(
		number,
		c.generations.Current,
		c.generations.InProgress(),
	)
}

func (c *Cache) ReadSector(number uint32) (Sector, error) {
	if sector, ok := c.visible(number); ok {
		return sector, nil
	}
	sector, err := c.backing.ReadSector(number)
	if err != nil {
		return Sector{}, err
	}
	return sector, nil
}

func (c *Cache) WriteSector(sector Sector) error {
	if !c.generations.InProgress() {
		c.truncate()
	}

	versions := c.entries[sector.Number]
	if len(versions) == 0 {
		baseline, err := c.backing.ReadSector(sector.Number)
		if err != nil {
			return fmt.Errorf(
				"writing sector `%d`: reading previous content: %w",
				sector.Number,
				err,
			)
		}
		baseline.Number = sector.Number
		baseline.Generation = 0
		versions = append(versions, baseline)
	}

	sector.Generation = c.generations.Current
	if last := &versions[len(versions)-1]; last.Generation == sector.Generation {
		*last = sector
	} else {
		versions = append(versions, sector)
	}
	c.entries[sector.Number] = versions
	return nil
}

// truncate drops the redo history before the first write after an undo.
func (c *Cache) truncate() {
	current := c.generations.Current
	for number, versions := range c.entries {
		c.entries[number] = dropFrom(versions, current)
	}
	c.logger.Debug(
		"discarding redo history",
		"generation", current,
		"max", c.generations.Max,
	)
	c.generations.Truncate()
}

func dropFrom(versions []Sector, generation uint32) []Sector {
	i := len(versions)
	for i > 0 && versions[i-1].Generation >= generation {
		i--
	}
	return versions[:i]
}

// Rollback discards every write of the generation in progress.
func (c *Cache) Rollback() {
	if !c.generations.InProgress() {
		return
	}
	current := c.generations.Current
	for number, versions := range c.entries {
		c.entries[number] = dropFrom(versions, current)
	}
}

// Dirty reports whether the generation in progress holds any write.
func (c *Cache) Dirty() bool {
	if !c.generations.InProgress() {
		return false
	}
	for _, versions := range c.entries {
		if len(versions) > 0 &&
			versions[len(versions)-1].Generation == c.generations.Current {
			return true
		}
	}
	return false
}

func (c *Cache) Advance() { c.generations.Advance() }

func (c *Cache) Retreat() error {
	c.Rollback()
	return c.generations.Retreat()
}

func (c *Cache) Redo() error {
	c.Rollback()
	return c.generations.Redo()
}

// SameGeneration folds the writes of the generation in progress into the
// last committed generation.
func (c *Cache) SameGeneration() error {
	current := c.generations.Current
	if !c.generations.InProgress() || current < 2 {
		return fmt.Errorf(
			"amending generation `%d`: %w",
			current-1,
			NothingToUndoErr,
		)
	}
	for number, versions := range c.entries {
		n := len(versions)
		if n == 0 || versions[n-1].Generation != current {
			continue
		}
		versions[n-1].Generation = current - 1
		if n > 1 && versions[n-2].Generation == current-1 {
			versions[n-2] = versions[n-1]
			versions = versions[:n-1]
		}
		c.entries[number] = versions
	}
	return nil
}

// Touched returns the numbers of all sectors ever written, ascending.
func (c *Cache) Touched() []uint32 {
	numbers := make([]uint32, 0, len(c.entries))
	for number := range c.entries {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers
}

// Persist writes the visible version of every touched sector to the
// backing store.
func (c *Cache) Persist() error {
	written := 0
	for _, number := range c.Touched() {
		sector, ok := c.visible(number)
		if !ok {
			continue
		}
		sector.Generation = 0
		if err := c.backing.WriteSector(sector); err != nil {
			return fmt.Errorf("persisting sector `%d`: %w", number, err)
		}
		written++
	}
	c.logger.Debug(
		"persisted sectors",
		"sectors", written,
		"generation", c.generations.Current,
	)
	return nil
}

func (c *Cache) SetCheckpoint() { c.generations.SetCheckpoint() }

func (c *Cache) Unsaved() bool { return c.generations.Unsaved() }
