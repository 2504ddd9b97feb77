// Package world holds the immutable static-data snapshot: items and their
// recipes, gatherable resources, monsters, and map tiles. It is loaded once
// at boot and injected into everything that needs it; nothing here mutates
// after Load returns.
package world

import (
	"sort"

	"botcrew.ai/internal/game"
)

type Recipe struct {
	Skill        game.Skill          `json:"skill"`
	Level        int                 `json:"level"`
	Quantity     int                 `json:"quantity"` // yield per craft
	Requirements []game.ItemQuantity `json:"requirements"`
}

type Item struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Subtype string  `json:"subtype,omitempty"`
	Level   int     `json:"level"`
	Craft   *Recipe `json:"craft,omitempty"`
}

type DropEntry struct {
	Code string `json:"code"`
	Rate int    `json:"rate"` // 1-in-N chance per action
}

type Resource struct {
	Code  string      `json:"code"`
	Name  string      `json:"name"`
	Skill game.Skill  `json:"skill"`
	Level int         `json:"level"`
	Drops []DropEntry `json:"drops"`
}

type Monster struct {
	Code  string      `json:"code"`
	Name  string      `json:"name"`
	Level int         `json:"level"`
	Drops []DropEntry `json:"drops"`
}

type Tile struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	ContentType string `json:"content_type,omitempty"` // "resource","monster","workshop","bank"
	ContentCode string `json:"content_code,omitempty"`
}

const bankContentCode = "bank"

// Snapshot indexes the static world data for the synchronous lookups the
// planner and tasks need.
type Snapshot struct {
	items     map[string]*Item
	resources map[string]*Resource
	monsters  map[string]*Monster
	byContent map[string]Tile // content code -> tile
	byPos     map[game.Position]Tile
}

// New builds a snapshot from loaded definitions. Later tiles win when two
// carry the same content code.
func New(items []Item, resources []Resource, monsters []Monster, tiles []Tile) *Snapshot {
	s := &Snapshot{
		items:     make(map[string]*Item, len(items)),
		resources: make(map[string]*Resource, len(resources)),
		monsters:  make(map[string]*Monster, len(monsters)),
		byContent: make(map[string]Tile, len(tiles)),
		byPos:     make(map[game.Position]Tile, len(tiles)),
	}
	for i := range items {
		s.items[items[i].Code] = &items[i]
	}
	for i := range resources {
		s.resources[resources[i].Code] = &resources[i]
	}
	for i := range monsters {
		s.monsters[monsters[i].Code] = &monsters[i]
	}
	for _, t := range tiles {
		if t.ContentCode != "" {
			s.byContent[t.ContentCode] = t
		}
		s.byPos[game.Position{X: t.X, Y: t.Y}] = t
	}
	return s
}

func (s *Snapshot) Item(code string) (*Item, bool) {
	it, ok := s.items[code]
	return it, ok
}

// Items returns every item definition, sorted by code.
func (s *Snapshot) Items() []*Item {
	out := make([]*Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *Snapshot) Resource(code string) (*Resource, bool) {
	r, ok := s.resources[code]
	return r, ok
}

func (s *Snapshot) Monster(code string) (*Monster, bool) {
	m, ok := s.monsters[code]
	return m, ok
}

// Location returns the tile position of a content code (resource, monster,
// workshop or bank).
func (s *Snapshot) Location(contentCode string) (game.Position, bool) {
	t, ok := s.byContent[contentCode]
	if !ok {
		return game.Position{}, false
	}
	return game.Position{X: t.X, Y: t.Y}, true
}

// WorkshopLocation finds the workshop tile for a crafting skill. Workshops
// are mapped under their skill name.
func (s *Snapshot) WorkshopLocation(skill game.Skill) (game.Position, bool) {
	return s.Location(string(skill))
}

// ContentAt returns the tile occupying a map position.
func (s *Snapshot) ContentAt(pos game.Position) (Tile, bool) {
	t, ok := s.byPos[pos]
	return t, ok
}

// BankLocation finds the shared vault tile.
func (s *Snapshot) BankLocation() (game.Position, bool) {
	return s.Location(bankContentCode)
}

// ResourceForDrop finds a resource that drops the given item.
func (s *Snapshot) ResourceForDrop(itemCode string) (*Resource, bool) {
	codes := make([]string, 0, len(s.resources))
	for code := range s.resources {
		codes = append(codes, code)
	}
	sort.Strings(codes) // deterministic choice when several match
	for _, code := range codes {
		r := s.resources[code]
		for _, d := range r.Drops {
			if d.Code == itemCode {
				return r, true
			}
		}
	}
	return nil, false
}

// MonsterForDrop finds a monster that drops the given item.
func (s *Snapshot) MonsterForDrop(itemCode string) (*Monster, bool) {
	codes := make([]string, 0, len(s.monsters))
	for code := range s.monsters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		m := s.monsters[code]
		for _, d := range m.Drops {
			if d.Code == itemCode {
				return m, true
			}
		}
	}
	return nil, false
}

// HighestGatherable returns the highest-level resource for a skill that a
// character at the given level can work, if any.
func (s *Snapshot) HighestGatherable(skill game.Skill, level int) (*Resource, bool) {
	var best *Resource
	for _, r := range s.resources {
		if r.Skill != skill || r.Level > level {
			continue
		}
		if best == nil || r.Level > best.Level || (r.Level == best.Level && r.Code < best.Code) {
			best = r
		}
	}
	return best, best != nil
}

// StrongestMonster returns the highest-level monster a character at the
// given level can take on, if any.
func (s *Snapshot) StrongestMonster(level int) (*Monster, bool) {
	var best *Monster
	for _, m := range s.monsters {
		if m.Level > level {
			continue
		}
		if best == nil || m.Level > best.Level || (m.Level == best.Level && m.Code < best.Code) {
			best = m
		}
	}
	return best, best != nil
}

// SingleRecipeConsumer finds the unique item whose recipe consumes only the
// given material (ore -> bar, log -> plank). Used to craft down excess raw
// materials before a deposit.
func (s *Snapshot) SingleRecipeConsumer(materialCode string) (*Item, bool) {
	var found *Item
	for _, it := range s.items {
		if it.Craft == nil || len(it.Craft.Requirements) != 1 {
			continue
		}
		if it.Craft.Requirements[0].Code != materialCode {
			continue
		}
		if found != nil {
			return nil, false // ambiguous
		}
		found = it
	}
	return found, found != nil
}

// Craftable reports whether the item exists and carries a recipe.
func (s *Snapshot) Craftable(code string) bool {
	it, ok := s.items[code]
	return ok && it.Craft != nil
}

// RecipeYield returns the per-craft output quantity, defaulting to 1.
func (r *Recipe) RecipeYield() int {
	if r.Quantity > 0 {
		return r.Quantity
	}
	return 1
}

func (s *Snapshot) Counts() (items, resources, monsters, tiles int) {
	return len(s.items), len(s.resources), len(s.monsters), len(s.byContent)
}
