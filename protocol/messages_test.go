package protocol

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"teamarena/world"
)

func TestClientMessages_Decode(t *testing.T) {
	cases := []struct {
		name string
		msg  ClientMessage
	}{
		{"input", Input{X: 0.5, Y: -1, Rotation: 0.02}},
		{"join dispatcher", JoinTeam{TeamID: 1, Role: world.Dispatcher, Name: "Ada"}},
		{"join agent", JoinTeam{TeamID: 0, Role: world.Agent, Name: "Bob"}},
		{"set name", SetName{Name: "Carol"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := MarshalClient(tc.msg)
			require.NoError(t, err)
			got, err := UnmarshalClient(payload)
			require.NoError(t, err)
			assert.Equal(t, tc.msg, got)
		})
	}
}

func TestServerMessages_GameStateCarriesTeams(t *testing.T) {
	w := world.New(world.DefaultTeams()...)
	_, err := w.JoinTeam(3, 1, world.Dispatcher, "Dee")
	require.NoError(t, err)

	payload, err := MarshalServer(GameState{State: w.Snapshot()})
	require.NoError(t, err)
	msg, err := UnmarshalServer(payload)
	require.NoError(t, err)

	gs, ok := msg.(GameState)
	require.True(t, ok, "got %T", msg)
	require.Len(t, gs.State.Teams, 2)
	assert.Equal(t, "BLUE", gs.State.Teams[1].Name)
	require.NotNil(t, gs.State.Teams[1].Dispatcher)
	assert.Equal(t, "Dee", gs.State.Teams[1].Dispatcher.Name)
}

func TestServerMessages_Deterministic(t *testing.T) {
	w := world.New(world.DefaultTeams()...)
	for i := uint64(0); i < 5; i++ {
		_, _ = w.JoinTeam(i, i%2, world.Agent, "p")
	}
	a, err := MarshalServer(GameState{State: w.Snapshot()})
	require.NoError(t, err)
	b, err := MarshalServer(GameState{State: w.Snapshot()})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestServerMessages_AssignAndSound(t *testing.T) {
	payload, err := MarshalServer(AssignID{ID: 42})
	require.NoError(t, err)
	msg, err := UnmarshalServer(payload)
	require.NoError(t, err)
	assert.Equal(t, AssignID{ID: 42}, msg)

	payload, err = MarshalServer(PlaySound{Effect: SoundLaserFire, Position: mgl32.Vec2{1, 2}})
	require.NoError(t, err)
	msg, err = UnmarshalServer(payload)
	require.NoError(t, err)
	assert.Equal(t, PlaySound{Effect: SoundLaserFire, Position: mgl32.Vec2{1, 2}}, msg)
}

func TestUnmarshalClient_Malformed(t *testing.T) {
	serverOnly, err := MarshalServer(AssignID{ID: 1})
	require.NoError(t, err)
	unknown, err := msgpack.Marshal(&envelope{Kind: 200})
	require.NoError(t, err)
	badRole, err := MarshalClient(JoinTeam{TeamID: 0, Role: world.Role(9), Name: "x"})
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":        {},
		"garbage":      {0xc1, 0xff, 0x00},
		"not a map":    {0x2a},
		"server kind":  serverOnly,
		"unknown kind": unknown,
		"bad role":     badRole,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalClient(payload)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestUnmarshalClient_RejectsNonFiniteInput(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	cases := map[string]Input{
		"nan x":        {X: nan},
		"nan y":        {Y: nan},
		"inf rotation": {Rotation: inf},
		"neg inf x":    {X: -inf},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			payload, err := MarshalClient(in)
			require.NoError(t, err)
			_, err = UnmarshalClient(payload)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseSoundEffect(t *testing.T) {
	s, ok := ParseSoundEffect("explosion")
	require.True(t, ok)
	assert.Equal(t, SoundExplosion, s)

	_, ok = ParseSoundEffect("trumpet")
	assert.False(t, ok)
}
