// Package plan turns "have N of item X in the bank" goals into leveled job
// graphs and hands the jobs out to workers through an orchestrator actor.
package plan

import (
	"fmt"

	"botcrew.ai/internal/game"
	"botcrew.ai/internal/task"
	"botcrew.ai/internal/world"
)

// WorkerProfile is what a job is matched against when a worker asks for
// work.
type WorkerProfile struct {
	Name   string
	Role   game.Role
	Level  int
	Skills map[game.Skill]int
}

func (p WorkerProfile) skill(s game.Skill) int {
	if lvl, ok := p.Skills[s]; ok && lvl > 0 {
		return lvl
	}
	return 1
}

// Job is one claimable unit of a goal. Implementations are pure data; all
// status tracking lives in the Goal.
type Job interface {
	ID() string
	// Level is the dependency depth, 0 being the goal item itself.
	Level() int
	// DependsOn lists job ids that must be done before this one is ready.
	DependsOn() []string
	// Matches reports whether the worker can run this job.
	Matches(p WorkerProfile) bool
	// Tasks expands the job into the task sequence a worker executes.
	Tasks(w *world.Snapshot) ([]task.Task, error)
	Describe() string
}

type jobBase struct {
	id    string
	level int
	deps  []string
}

func (j jobBase) ID() string          { return j.id }
func (j jobBase) Level() int          { return j.level }
func (j jobBase) DependsOn() []string { return j.deps }

// GatherJob collects a quantity of one raw material from a resource and
// banks it.
type GatherJob struct {
	jobBase
	Item       string
	Quantity   int
	Resource   string
	Skill      game.Skill
	SkillLevel int
}

func (j *GatherJob) Matches(p WorkerProfile) bool {
	return p.Role == game.RoleGatherer && p.skill(j.Skill) >= j.SkillLevel
}

func (j *GatherJob) Tasks(w *world.Snapshot) ([]task.Task, error) {
	return []task.Task{
		&task.GatherUntilDrop{Resource: j.Resource, Drop: j.Item, Target: j.Quantity},
		&task.Deposit{},
	}, nil
}

func (j *GatherJob) Describe() string {
	return fmt.Sprintf("gather %s x%d from %s", j.Item, j.Quantity, j.Resource)
}

// FightJob farms a quantity of one monster drop and banks it.
type FightJob struct {
	jobBase
	Item         string
	Quantity     int
	Monster      string
	MonsterLevel int
}

func (j *FightJob) Matches(p WorkerProfile) bool {
	return p.Role == game.RoleFighter && p.Level >= j.MonsterLevel
}

func (j *FightJob) Tasks(w *world.Snapshot) ([]task.Task, error) {
	return []task.Task{
		&task.FightUntilDrop{Monster: j.Monster, Drop: j.Item, Target: j.Quantity},
		&task.Deposit{},
	}, nil
}

func (j *FightJob) Describe() string {
	return fmt.Sprintf("farm %s x%d from %s", j.Item, j.Quantity, j.Monster)
}

// CraftJob crafts a quantity of one item from banked materials. The craft
// pipeline deposits its own output.
type CraftJob struct {
	jobBase
	Item       string
	Quantity   int
	Skill      game.Skill
	SkillLevel int
}

func (j *CraftJob) Matches(p WorkerProfile) bool {
	return p.Role == game.RoleCrafter && p.skill(j.Skill) >= j.SkillLevel
}

func (j *CraftJob) Tasks(w *world.Snapshot) ([]task.Task, error) {
	if !w.Craftable(j.Item) {
		return nil, game.NewError(game.CodeItemNotFound, "item %q has no recipe", j.Item)
	}
	return []task.Task{
		&task.CraftWithMaterials{Item: j.Item, Quantity: j.Quantity},
	}, nil
}

func (j *CraftJob) Describe() string {
	return fmt.Sprintf("craft %s x%d", j.Item, j.Quantity)
}
