// Package sim is a small deterministic reference simulation: players
// move on a bounded 2D field from per-frame input sets. It exists so
// the prediction controller, the demo client and the tests have a real
// game-rule collaborator to drive; any simulation satisfying
// network.Simulation can replace it.
package sim

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/solarlune/resolv"
	"github.com/yohamta/donburi"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

const (
	tagSolid = "solid"

	wallThickness = 16.0
	playerSize    = 16.0
)

// TransformData is a player's position on the field.
type TransformData struct {
	X, Y float64
}

// CombatData counts one-shot actions; enough to make action inputs
// observable without a combat system.
type CombatData struct {
	Attacks     int
	Skill1Casts int
	Skill2Casts int
}

// PlayerData ties an entity to its player id.
type PlayerData struct {
	ID string
}

var (
	Transform = donburi.NewComponentType[TransformData]()
	Combat    = donburi.NewComponentType[CombatData]()
	Player    = donburi.NewComponentType[PlayerData]()
)

// World advances player state one frame at a time. Stepping is
// deterministic: players are visited in sorted id order and all math
// is plain float64 arithmetic.
type World struct {
	world     donburi.World
	space     *resolv.Space
	players   map[string]donburi.Entity
	objects   map[string]*resolv.Object
	width     float64
	height    float64
	moveSpeed float64
	frame     int64
}

// NewWorld creates a bounded field with solid walls on all four sides.
func NewWorld(width, height int, moveSpeed float64) *World {
	w := &World{
		world:     donburi.NewWorld(),
		space:     resolv.NewSpace(width, height, 16, 16),
		players:   make(map[string]donburi.Entity),
		objects:   make(map[string]*resolv.Object),
		width:     float64(width),
		height:    float64(height),
		moveSpeed: moveSpeed,
	}

	fw, fh := float64(width), float64(height)
	walls := [][4]float64{
		{0, -wallThickness, fw, wallThickness}, // top
		{0, fh, fw, wallThickness},             // bottom
		{-wallThickness, 0, wallThickness, fh}, // left
		{fw, 0, wallThickness, fh},             // right
	}
	for _, wall := range walls {
		obj := resolv.NewObject(wall[0], wall[1], wall[2], wall[3], tagSolid)
		obj.SetShape(resolv.NewRectangle(0, 0, wall[2], wall[3]))
		w.space.Add(obj)
	}
	return w
}

// AddPlayer spawns a player at the given position. Adding an existing
// player moves it.
func (w *World) AddPlayer(id string, x, y float64) {
	if entity, ok := w.players[id]; ok {
		entry := w.world.Entry(entity)
		Transform.Set(entry, &TransformData{X: x, Y: y})
		w.objects[id].X = x
		w.objects[id].Y = y
		w.objects[id].Update()
		return
	}

	entity := w.world.Create(Player, Transform, Combat)
	entry := w.world.Entry(entity)
	Player.Set(entry, &PlayerData{ID: id})
	Transform.Set(entry, &TransformData{X: x, Y: y})
	Combat.Set(entry, &CombatData{})
	w.players[id] = entity

	obj := resolv.NewObject(x, y, playerSize, playerSize, "player")
	obj.SetShape(resolv.NewRectangle(0, 0, playerSize, playerSize))
	w.space.Add(obj)
	w.objects[id] = obj
}

// RemovePlayer despawns a player.
func (w *World) RemovePlayer(id string) {
	entity, ok := w.players[id]
	if !ok {
		return
	}
	if w.world.Valid(entity) {
		w.world.Remove(entity)
	}
	if obj := w.objects[id]; obj != nil {
		w.space.Remove(obj)
	}
	delete(w.players, id)
	delete(w.objects, id)
}

// Step advances one frame from a dense input set. Players appearing in
// the set for the first time spawn at the field center.
func (w *World) Step(set messages.FrameInputSet) {
	ids := make([]string, 0, len(set.Samples))
	for id := range set.Samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sample := set.Samples[id]
		if _, ok := w.players[id]; !ok {
			w.AddPlayer(id, w.width/2, w.height/2)
		}
		w.stepPlayer(id, sample.Payload)
	}
	w.frame = set.Frame
}

func (w *World) stepPlayer(id string, payload messages.InputPayload) {
	obj := w.objects[id]
	entry := w.world.Entry(w.players[id])

	dx := clamp(payload.MoveX, -1, 1) * w.moveSpeed
	dy := clamp(payload.MoveY, -1, 1) * w.moveSpeed

	if dx != 0 {
		if check := obj.Check(dx, 0, tagSolid); check != nil {
			if solids := check.ObjectsByTags(tagSolid); len(solids) > 0 {
				dx = check.ContactWithObject(solids[0]).X()
			}
		}
		obj.X += dx
		obj.Update()
	}
	if dy != 0 {
		if check := obj.Check(0, dy, tagSolid); check != nil {
			if solids := check.ObjectsByTags(tagSolid); len(solids) > 0 {
				dy = check.ContactWithObject(solids[0]).Y()
			}
		}
		obj.Y += dy
		obj.Update()
	}

	Transform.Set(entry, &TransformData{X: obj.X, Y: obj.Y})

	combat := Combat.Get(entry)
	if payload.Attack {
		combat.Attacks++
	}
	if payload.Skill1 {
		combat.Skill1Casts++
	}
	if payload.Skill2 {
		combat.Skill2Casts++
	}
}

// Clone forks an independent copy of the world. donburi has no deep
// copy, so entities are rebuilt component by component; the sim owns
// its component set, which makes that exact.
func (w *World) Clone() *World {
	out := NewWorld(int(w.width), int(w.height), w.moveSpeed)
	out.frame = w.frame

	for _, id := range w.sortedPlayerIDs() {
		entry := w.world.Entry(w.players[id])
		tf := Transform.Get(entry)
		out.AddPlayer(id, tf.X, tf.Y)

		combat := Combat.Get(entry)
		outEntry := out.world.Entry(out.players[id])
		Combat.Set(outEntry, &CombatData{
			Attacks:     combat.Attacks,
			Skill1Casts: combat.Skill1Casts,
			Skill2Casts: combat.Skill2Casts,
		})
	}
	return out
}

// PlayerPosition returns a player's current position.
func (w *World) PlayerPosition(id string) (x, y float64, ok bool) {
	entity, found := w.players[id]
	if !found {
		return 0, 0, false
	}
	tf := Transform.Get(w.world.Entry(entity))
	return tf.X, tf.Y, true
}

// PlayerCombat returns a player's action counters.
func (w *World) PlayerCombat(id string) (CombatData, bool) {
	entity, found := w.players[id]
	if !found {
		return CombatData{}, false
	}
	return *Combat.Get(w.world.Entry(entity)), true
}

// Frame returns the last stepped frame number.
func (w *World) Frame() int64 {
	return w.frame
}

// Checksum hashes the full player state in sorted id order. Two worlds
// that consumed the same frame-set sequence produce the same value;
// clients can exchange it to detect desync.
func (w *World) Checksum() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "frame:%d;", w.frame)
	for _, id := range w.sortedPlayerIDs() {
		entry := w.world.Entry(w.players[id])
		tf := Transform.Get(entry)
		combat := Combat.Get(entry)
		fmt.Fprintf(h, "%s:%x:%x:%d:%d:%d;",
			id,
			math.Float64bits(tf.X), math.Float64bits(tf.Y),
			combat.Attacks, combat.Skill1Casts, combat.Skill2Casts)
	}
	return h.Sum64()
}

func (w *World) sortedPlayerIDs() []string {
	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
