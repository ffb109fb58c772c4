package layout

import (
	"hash/fnv"
	"math"

	"github.com/agentfloor/agentfloor/internal/types"
)

// Desk zone layout: a fixed grid of primary seats
const (
	DeskCapacity = 12
	deskCols     = 4
	deskOriginX  = 80.0
	deskOriginY  = 80.0
	deskGapX     = 140.0
	deskGapY     = 120.0
)

// Hot-desk zone: overflow and sub-agent seating, everything at y >= HotDeskY
const (
	HotDeskY    = 380.0
	hotDeskCols = 6
	hotDeskX    = 100.0
	hotDeskGapX = 110.0
	hotDeskGapY = 90.0
)

// 2D -> 3D projection: independent per-axis scale factors, ground plane y=0
const (
	Scale3DX = 0.04
	Scale3DZ = 0.05
)

// Meeting ring constants
const (
	// MinMeetingSeparation is the guaranteed pairwise 2D distance between
	// gathered agents
	MinMeetingSeparation = 10.0

	// meetingBaseRadius3D is the default ring radius in projected space
	meetingBaseRadius3D = 4.0
)

// DefaultMeetingCenter is where meeting groups gather in 2D scene space
var DefaultMeetingCenter = types.Position{X: 460, Y: 300}

// DeskSlot returns the 2D position of desk slot i
func DeskSlot(i int) types.Position {
	return types.Position{
		X: deskOriginX + float64(i%deskCols)*deskGapX,
		Y: deskOriginY + float64(i/deskCols)*deskGapY,
	}
}

// HotDeskSlot returns the 2D position of hot-desk slot i. Rows grow
// downward without bound, so a probe always terminates.
func HotDeskSlot(i int) types.Position {
	return types.Position{
		X: hotDeskX + float64(i%hotDeskCols)*hotDeskGapX,
		Y: HotDeskY + float64(i/hotDeskCols)*hotDeskGapY,
	}
}

// AllocatePosition places an agent deterministically: the candidate slot
// sequence depends only on the identity hash, and the first slot not in
// occupied wins. Top-level agents start in the desk zone and overflow to
// the hot-desk zone once its 12 slots are taken; sub-agents go straight to
// the hot-desk zone. The allocator holds no state of its own — occupancy
// is supplied by the caller on every call.
func AllocatePosition(agentID string, isSubAgent bool, occupied map[types.Position]bool) types.Position {
	h := int(hashID(agentID))

	if !isSubAgent {
		start := h % DeskCapacity
		for k := 0; k < DeskCapacity; k++ {
			slot := DeskSlot((start + k) % DeskCapacity)
			if !occupied[slot] {
				return slot
			}
		}
		// Desk zone exhausted, fall through to hot desks
	}

	start := h % hotDeskCols
	for k := 0; ; k++ {
		slot := HotDeskSlot(start + k)
		if !occupied[slot] {
			return slot
		}
	}
}

// AllocateMeetingPositions places n agents equi-angularly on a ring around
// center at a constant radius in projected space. The radius grows with n
// so that the pairwise 2D separation always exceeds MinMeetingSeparation.
// n=0 yields an empty result.
func AllocateMeetingPositions(agentIDs []string, center types.Position) []types.Position {
	n := len(agentIDs)
	if n == 0 {
		return nil
	}

	c3 := Position2DTo3D(center)

	radius := meetingBaseRadius3D
	if n > 1 {
		// Back-projection divides by the per-axis scale, so a 3D chord of
		// MinMeetingSeparation*maxScale is already enough; keep a margin.
		maxScale := math.Max(Scale3DX, Scale3DZ)
		required := (MinMeetingSeparation * maxScale * 1.2) / (2 * math.Sin(math.Pi/float64(n)))
		if required > radius {
			radius = required
		}
	}

	positions := make([]types.Position, n)
	for i := range agentIDs {
		angle := 2 * math.Pi * float64(i) / float64(n)
		x3 := c3[0] + radius*math.Cos(angle)
		z3 := c3[2] + radius*math.Sin(angle)
		positions[i] = Position3DTo2D(x3, z3)
	}
	return positions
}

// Position2DTo3D projects a 2D scene position onto the 3D ground plane:
// x and y scale independently into x3d and z3d, y3d is pinned to 0, and
// the origin maps to the origin.
func Position2DTo3D(p types.Position) [3]float64 {
	return [3]float64{p.X * Scale3DX, 0, p.Y * Scale3DZ}
}

// Position3DTo2D is the inverse ground-plane projection
func Position3DTo2D(x3, z3 float64) types.Position {
	return types.Position{X: x3 / Scale3DX, Y: z3 / Scale3DZ}
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}
