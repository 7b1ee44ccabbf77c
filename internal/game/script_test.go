package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/d5/tengo/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixedScript = `
decide := func(engine, agent) {
	if agent.kind == "customer" {
		return [2, 0]
	}
	return undefined
}
`

func TestScriptBrain_DecidesAndFallsBack(t *testing.T) {
	fallback := BrainFunc(func(s *Sim, a *Agent) *Cell {
		if a.IsEmployee() {
			return s.Grid.At(2, 1)
		}
		return nil
	})
	brain, err := NewScriptBrain("fixed", []byte(fixedScript), fallback)
	require.NoError(t, err)

	s := NewSim(
		WithGridSize(3, 2),
		WithBrain(brain),
		WithCustomer("C0", 0, 0),
		WithEmployee("E0", 0, 1),
	)
	require.NoError(t, s.Err())
	tick := s.RunUntil(func(s *Sim) bool {
		return s.AgentByLabel("C0").Cell() == s.Grid.At(2, 0) &&
			s.AgentByLabel("E0").Cell() == s.Grid.At(2, 1)
	}, 200)
	if tick < 0 {
		dumpLog(t, s)
		t.Fatal("agents never reached their scripted cells")
	}
	assert.False(t, s.SimLog.HasEntry("brain", "script_error", ""))
}

func TestScriptBrain_BadReturnFallsBack(t *testing.T) {
	brain, err := NewScriptBrain("bad", []byte(`decide := func(engine, agent) { return "nope" }`),
		BrainFunc(func(s *Sim, a *Agent) *Cell { return s.Grid.At(1, 0) }))
	require.NoError(t, err)

	s := NewSim(WithGridSize(2, 1), WithBrain(brain), WithCustomer("C0", 0, 0))
	s.Step(0.1)
	assert.True(t, s.SimLog.HasEntry("brain", "script_error", "got string"))
	assert.Equal(t, s.Grid.At(1, 0), s.AgentByLabel("C0").Dest())
}

func TestScriptBrain_OutOfGrid(t *testing.T) {
	brain, err := NewScriptBrain("far", []byte(`decide := func(engine, agent) { return [40, 40] }`), nil)
	require.NoError(t, err)
	s := NewSim(WithGridSize(2, 1), WithBrain(brain), WithCustomer("C0", 0, 0))
	s.Step(0.1)
	assert.True(t, s.SimLog.HasEntry("brain", "script_error", "outside the grid"))
	assert.Nil(t, s.AgentByLabel("C0").Dest())
}

func TestScriptBrain_CompileError(t *testing.T) {
	_, err := NewScriptBrain("broken", []byte(`decide := func(`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script: compile broken")
}

func TestScriptBrain_EngineFunctions(t *testing.T) {
	src := `
decide := func(engine, agent) {
	engine.log(format("cost=%v", engine.cell_cost(1, 0)))
	if engine.occupied(1, 0) {
		return undefined
	}
	if agent.queue == 1 {
		return engine.outside_cell(agent.x, agent.y)
	}
	return engine.queue_slot(agent.x, agent.y, true)
}
`
	brain, err := NewScriptBrain("engine", []byte(src), nil)
	require.NoError(t, err)

	s := NewSim(
		WithRows(
			"ooo",
			"...",
			"..1",
		),
		WithBrain(brain),
		WithCustomer("C0", 0, 2),
	)
	require.NoError(t, s.Err())

	require.Positive(t, s.RunUntil(func(s *Sim) bool {
		return s.AgentByLabel("C0").Cell().QueueDepth == 1
	}, 100))
	assert.True(t, s.SimLog.HasEntry("brain", "script_log", "cost="))

	require.Positive(t, s.RunUntil(func(s *Sim) bool {
		return s.AgentByLabel("C0").Cell().Outside
	}, 100))
}

func TestDeclareScriptVars(t *testing.T) {
	script := tengo.NewScript([]byte(`x := __a`))
	require.NoError(t, declareScriptVars(script, "ok", []scriptVar{{"__a", 1}}))

	err := declareScriptVars(script, "bad", []scriptVar{{"__b", make(chan int)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script: declare __b in bad")
}

func TestLoadScriptBrain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brain.tengo")
	require.NoError(t, os.WriteFile(path, []byte(fixedScript), 0o600))

	b, err := LoadScriptBrain(path, QueueBrain{})
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = LoadScriptBrain(filepath.Join(dir, "missing.tengo"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script: read")
}
