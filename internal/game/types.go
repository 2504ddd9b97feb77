package game

import "time"

// Skill identifies a gathering or crafting discipline.
type Skill string

const (
	SkillMining          Skill = "mining"
	SkillWoodcutting     Skill = "woodcutting"
	SkillFishing         Skill = "fishing"
	SkillWeaponcrafting  Skill = "weaponcrafting"
	SkillGearcrafting    Skill = "gearcrafting"
	SkillJewelrycrafting Skill = "jewelrycrafting"
	SkillCooking         Skill = "cooking"
	SkillAlchemy         Skill = "alchemy"
)

// Role describes what kind of work a character is dedicated to.
type Role string

const (
	RoleGatherer Role = "gatherer"
	RoleCrafter  Role = "crafter"
	RoleFighter  Role = "fighter"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type InventorySlot struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

type ItemQuantity struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// Character is the point-in-time snapshot returned by every action. The
// worker replaces its copy wholesale on each result; nothing mutates one in
// place.
type Character struct {
	Name          string
	Level         int
	Pos           Position
	HP            int
	MaxHP         int
	Gold          int
	Inventory     []InventorySlot
	InventoryMax  int // total item capacity across slots
	SkillLevels   map[Skill]int
	CooldownUntil time.Time
}

// CanAct reports whether the per-character action cooldown has elapsed.
func (c *Character) CanAct(now time.Time) bool {
	return !now.Before(c.CooldownUntil)
}

// ReadyIn returns the remaining cooldown, zero if ready.
func (c *Character) ReadyIn(now time.Time) time.Duration {
	if d := c.CooldownUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// CountInInventory sums held quantity of one item code.
func (c *Character) CountInInventory(code string) int {
	n := 0
	for _, s := range c.Inventory {
		if s.Code == code {
			n += s.Quantity
		}
	}
	return n
}

// InventoryUsed is the total number of items held.
func (c *Character) InventoryUsed() int {
	n := 0
	for _, s := range c.Inventory {
		n += s.Quantity
	}
	return n
}

// InventoryFree is the remaining item capacity.
func (c *Character) InventoryFree() int {
	if free := c.InventoryMax - c.InventoryUsed(); free > 0 {
		return free
	}
	return 0
}

// HasItems reports whether the inventory holds at least qty of code.
func (c *Character) HasItems(code string, qty int) bool {
	return c.CountInInventory(code) >= qty
}

// SkillLevel returns the character's level in a skill, 1 when unknown.
func (c *Character) SkillLevel(s Skill) int {
	if lvl, ok := c.SkillLevels[s]; ok && lvl > 0 {
		return lvl
	}
	return 1
}
