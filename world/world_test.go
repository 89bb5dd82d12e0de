package world

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorld() *World {
	return New(DefaultTeams()...)
}

// checkInvariants 每个玩家至多出现一次，每队至多一名 Dispatcher
func checkInvariants(t *testing.T, w *World) {
	t.Helper()
	seen := map[uint64]uint64{}
	for _, team := range w.Teams() {
		if team.Dispatcher != nil {
			assert.Equal(t, Dispatcher, team.Dispatcher.Role)
			_, dup := seen[team.Dispatcher.ID]
			require.False(t, dup, "player %d appears twice", team.Dispatcher.ID)
			seen[team.Dispatcher.ID] = team.ID
		}
		for _, a := range team.Agents {
			assert.Equal(t, Agent, a.Role)
			_, dup := seen[a.ID]
			require.False(t, dup, "player %d appears twice", a.ID)
			seen[a.ID] = team.ID
		}
	}
}

func TestJoinTeam_DispatcherContention(t *testing.T) {
	w := newTestWorld()

	ok, err := w.JoinTeam(1, 0, Dispatcher, "A")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = w.JoinTeam(2, 0, Dispatcher, "B")
	require.NoError(t, err)
	assert.False(t, ok, "second dispatcher must be ignored")

	team, _ := w.Team(0)
	require.NotNil(t, team.Dispatcher)
	assert.Equal(t, uint64(1), team.Dispatcher.ID)
	assert.Nil(t, w.Player(2))
}

func TestJoinTeam_RejoinMovesPlayer(t *testing.T) {
	w := newTestWorld()
	_, _ = w.JoinTeam(1, 0, Agent, "A")
	_, _ = w.JoinTeam(1, 1, Agent, "A")

	red, _ := w.Team(0)
	blue, _ := w.Team(1)
	assert.Empty(t, red.Agents)
	require.Len(t, blue.Agents, 1)
	assert.Equal(t, uint64(1), blue.Agents[0].ID)
	checkInvariants(t, w)
}

func TestJoinTeam_SwitchRoleWithinTeam(t *testing.T) {
	w := newTestWorld()
	_, _ = w.JoinTeam(1, 0, Agent, "A")
	ok, err := w.JoinTeam(1, 0, Dispatcher, "A")
	require.NoError(t, err)
	require.True(t, ok)

	red, _ := w.Team(0)
	assert.Empty(t, red.Agents)
	require.NotNil(t, red.Dispatcher)
	assert.Equal(t, uint64(1), red.Dispatcher.ID)
}

func TestJoinTeam_LosingDispatcherBidStillLeavesOldTeam(t *testing.T) {
	w := newTestWorld()
	_, _ = w.JoinTeam(1, 1, Dispatcher, "A")
	_, _ = w.JoinTeam(2, 0, Agent, "B")

	ok, err := w.JoinTeam(2, 1, Dispatcher, "B")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, w.Player(2), "player is removed before the failed bid")
}

func TestJoinTeam_UnknownTeam(t *testing.T) {
	w := newTestWorld()
	_, _ = w.JoinTeam(1, 0, Agent, "A")

	ok, err := w.JoinTeam(1, 9, Agent, "A")
	require.ErrorIs(t, err, ErrUnknownTeam)
	assert.False(t, ok)
	assert.Nil(t, w.Player(1))
}

func TestAgentsAreUnbounded(t *testing.T) {
	w := newTestWorld()
	for i := uint64(0); i < 100; i++ {
		ok, err := w.JoinTeam(i, 1, Agent, "agent")
		require.NoError(t, err)
		require.True(t, ok)
	}
	blue, _ := w.Team(1)
	assert.Len(t, blue.Agents, 100)
	assert.Equal(t, 100, w.PlayerCount())
}

func TestRemovePlayer(t *testing.T) {
	w := newTestWorld()
	_, _ = w.JoinTeam(1, 0, Dispatcher, "A")
	_, _ = w.JoinTeam(2, 0, Agent, "B")

	assert.True(t, w.RemovePlayer(1))
	assert.False(t, w.RemovePlayer(1))
	assert.False(t, w.RemovePlayer(77))

	red, _ := w.Team(0)
	assert.Nil(t, red.Dispatcher)
	require.Len(t, red.Agents, 1)

	// 槽位空出后新的 Dispatcher 可以加入
	ok, _ := w.JoinTeam(3, 0, Dispatcher, "C")
	assert.True(t, ok)
}

func TestTeamInvariants_RandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	w := newTestWorld()
	for i := 0; i < 2000; i++ {
		id := uint64(rng.Intn(12))
		switch rng.Intn(4) {
		case 0:
			w.RemovePlayer(id)
		case 1:
			_, _ = w.JoinTeam(id, uint64(rng.Intn(3)), Agent, "a")
		default:
			_, _ = w.JoinTeam(id, uint64(rng.Intn(2)), Role(rng.Intn(2)), "d")
		}
		checkInvariants(t, w)
	}
}

func TestRenamePlayer(t *testing.T) {
	w := newTestWorld()
	_, _ = w.JoinTeam(1, 1, Agent, "A")
	v := w.Version()

	assert.True(t, w.RenamePlayer(1, "Alice"))
	assert.Greater(t, w.Version(), v)
	p, team, ok := w.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), team)
	assert.Equal(t, "Alice", p.Name)

	assert.False(t, w.RenamePlayer(99, "Nobody"))
}

func TestVersionTracksMembership(t *testing.T) {
	w := newTestWorld()
	v0 := w.Version()
	_, _ = w.JoinTeam(1, 0, Dispatcher, "A")
	v1 := w.Version()
	assert.Greater(t, v1, v0)

	_, _ = w.JoinTeam(2, 0, Dispatcher, "B")
	assert.Equal(t, v1, w.Version(), "ignored join changes nothing")

	w.AdvancePlayer(1, 1, Input{X: 1})
	assert.Equal(t, v1, w.Version(), "movement is not a roster change")
}

func TestAdvancePlayer_MovesUpInLocalFrame(t *testing.T) {
	w := newTestWorld()
	_, _ = w.JoinTeam(1, 0, Agent, "A")

	require.True(t, w.AdvancePlayer(1, 1.0, Input{X: 0, Y: -1, Rotation: 0}))
	p, _, _ := w.Lookup(1)
	assert.InDelta(t, 0, p.Position.X(), 1e-5)
	assert.InDelta(t, -PlayerSpeed, p.Position.Y(), 1e-5)
	assert.Zero(t, p.Rotation)

	assert.False(t, w.AdvancePlayer(5, 1.0, Input{Y: 1}))
}

func TestAdvancePlayer_RotationIsNotScaledByDelta(t *testing.T) {
	p := newPlayer(1, "A", Agent)
	p.Advance(0.01, Input{Rotation: 0.5})
	assert.InDelta(t, -0.5, p.Rotation, 1e-6)
	assert.Zero(t, p.Position.Len())
}

func TestAdvancePlayer_MovementFollowsFacing(t *testing.T) {
	p := newPlayer(1, "A", Agent)
	// 转向 -90°（rotation 变为 +π/2），再向局部 +X 前进
	p.Advance(1, Input{Rotation: -math.Pi / 2})
	p.Advance(1, Input{X: 1})

	assert.InDelta(t, 0, p.Position.X(), 1e-3)
	assert.InDelta(t, -PlayerSpeed, p.Position.Y(), 1e-3)
	assert.InDelta(t, float32(PlayerSpeed), p.Position.Len(), 1e-3)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	w := newTestWorld()
	_, _ = w.JoinTeam(1, 0, Dispatcher, "A")
	_, _ = w.JoinTeam(2, 1, Agent, "B")

	snap := w.Snapshot()
	w.RenamePlayer(1, "changed")
	w.AdvancePlayer(2, 1, Input{X: 1})

	d, ok := snap.Player(1)
	require.True(t, ok)
	assert.Equal(t, "A", d.Name)
	a, ok := snap.Player(2)
	require.True(t, ok)
	assert.Zero(t, a.Position.Len())

	roster := snap.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, "A", roster[0].Dispatcher)
	assert.Equal(t, []string{"B"}, roster[1].Agents)
}

func TestSnapshot_CarriesGameStarted(t *testing.T) {
	w := newTestWorld()
	assert.False(t, w.Snapshot().GameStarted)

	w.SetStarted(true)
	snap := w.Snapshot()
	w.SetStarted(false)
	assert.True(t, snap.GameStarted)
	assert.False(t, w.Started())
}
