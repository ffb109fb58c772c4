package layout

import (
	"fmt"
	"math"
	"testing"

	"github.com/agentfloor/agentfloor/internal/types"
)

func TestAllocatePositionDeterministic(t *testing.T) {
	occupied := map[types.Position]bool{}

	a := AllocatePosition("agent-1", false, occupied)
	b := AllocatePosition("agent-1", false, occupied)

	if a != b {
		t.Errorf("same id with same occupancy must get the same slot: %+v vs %+v", a, b)
	}
}

func TestAllocatePositionPairwiseDistinct(t *testing.T) {
	occupied := map[types.Position]bool{}
	seen := map[types.Position]bool{}

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("agent-%d", i)
		pos := AllocatePosition(id, false, occupied)
		if seen[pos] {
			t.Fatalf("slot collision for %s at %+v", id, pos)
		}
		seen[pos] = true
		occupied[pos] = true
	}
}

func TestAllocatePositionDeskOverflow(t *testing.T) {
	occupied := map[types.Position]bool{}

	for i := 0; i < DeskCapacity; i++ {
		pos := AllocatePosition(fmt.Sprintf("top-%d", i), false, occupied)
		if pos.Y >= HotDeskY {
			t.Fatalf("agent %d spilled to hot desks with desk slots free", i)
		}
		occupied[pos] = true
	}

	// 13th top-level agent lands in the hot-desk zone
	pos := AllocatePosition("top-overflow", false, occupied)
	if pos.Y < HotDeskY {
		t.Errorf("overflow agent must land at y >= %v, got %+v", HotDeskY, pos)
	}
}

func TestAllocatePositionSubAgentZone(t *testing.T) {
	occupied := map[types.Position]bool{}

	for i := 0; i < 15; i++ {
		pos := AllocatePosition(fmt.Sprintf("sub-%d", i), true, occupied)
		if pos.Y < HotDeskY {
			t.Fatalf("sub-agent placed in desk zone at %+v", pos)
		}
		occupied[pos] = true
	}
}

func TestAllocateMeetingPositionsEmpty(t *testing.T) {
	if got := AllocateMeetingPositions(nil, DefaultMeetingCenter); got != nil {
		t.Errorf("expected nil for empty group, got %v", got)
	}
}

func TestAllocateMeetingPositionsSeparation(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8, 12, 20} {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("a-%d", i)
		}

		positions := AllocateMeetingPositions(ids, DefaultMeetingCenter)
		if len(positions) != n {
			t.Fatalf("n=%d: got %d positions", n, len(positions))
		}

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				d := math.Hypot(positions[i].X-positions[j].X, positions[i].Y-positions[j].Y)
				if d <= MinMeetingSeparation {
					t.Errorf("n=%d: agents %d and %d only %.2f apart", n, i, j, d)
				}
			}
		}
	}
}

func TestAllocateMeetingPositionsDeterministic(t *testing.T) {
	ids := []string{"a", "b", "c"}
	first := AllocateMeetingPositions(ids, DefaultMeetingCenter)
	second := AllocateMeetingPositions(ids, DefaultMeetingCenter)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("position %d differs between calls: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPositionProjectionOrigin(t *testing.T) {
	p3 := Position2DTo3D(types.Position{X: 0, Y: 0})
	if p3 != [3]float64{0, 0, 0} {
		t.Errorf("origin must map to origin, got %v", p3)
	}
}

func TestPositionProjectionScaling(t *testing.T) {
	p3 := Position2DTo3D(types.Position{X: 100, Y: 100})

	if math.Abs(p3[0]-100*Scale3DX) > 1e-9 {
		t.Errorf("x scaling wrong: %v", p3[0])
	}
	if p3[1] != 0 {
		t.Errorf("projected y must be pinned to ground plane, got %v", p3[1])
	}
	if math.Abs(p3[2]-100*Scale3DZ) > 1e-9 {
		t.Errorf("z scaling wrong: %v", p3[2])
	}
}

func TestPositionProjectionRoundTrip(t *testing.T) {
	orig := types.Position{X: 460, Y: 300}
	p3 := Position2DTo3D(orig)
	back := Position3DTo2D(p3[0], p3[2])

	if math.Abs(back.X-orig.X) > 1e-9 || math.Abs(back.Y-orig.Y) > 1e-9 {
		t.Errorf("round trip drifted: %+v -> %+v", orig, back)
	}
}
