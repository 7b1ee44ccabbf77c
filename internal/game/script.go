package game

import (
	"fmt"
	"os"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/zyedidia/generic/mapset"
)

// scriptDispatch is appended to every brain script. Scripts define
// decide(engine, agent) and return [x, y] or undefined.
const scriptDispatch = `
__dest = decide(__engine, __agent)
`

// ScriptBrain runs a tengo script to pick destinations. When the script
// returns undefined, or fails, the fallback brain decides instead.
type ScriptBrain struct {
	compiled *tengo.Compiled
	fallback Brain
	name     string
}

// NewScriptBrain compiles src. fallback may be nil.
func NewScriptBrain(name string, src []byte, fallback Brain) (*ScriptBrain, error) {
	script := tengo.NewScript(append(append([]byte(nil), src...), scriptDispatch...))
	if err := declareScriptVars(script, name, []scriptVar{
		{"__engine", map[string]any{}},
		{"__agent", map[string]any{}},
		{"__dest", nil},
	}); err != nil {
		return nil, err
	}

	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("script: compile %s: %w", name, err)
	}
	return &ScriptBrain{compiled: compiled, fallback: fallback, name: name}, nil
}

type scriptVar struct {
	name  string
	value any
}

// declareScriptVars predeclares the globals Decide sets on every run.
func declareScriptVars(script *tengo.Script, name string, vars []scriptVar) error {
	for _, v := range vars {
		if err := script.Add(v.name, v.value); err != nil {
			return fmt.Errorf("script: declare %s in %s: %w", v.name, name, err)
		}
	}
	return nil
}

// LoadScriptBrain reads and compiles a script file.
func LoadScriptBrain(path string, fallback Brain) (*ScriptBrain, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	return NewScriptBrain(path, src, fallback)
}

func (b *ScriptBrain) Decide(s *Sim, a *Agent) *Cell {
	dest, err := b.run(s, a)
	if err != nil {
		s.log(a, "brain", "script_error", err.Error(), 0)
	}
	if dest != nil || b.fallback == nil {
		return dest
	}
	return b.fallback.Decide(s, a)
}

func (b *ScriptBrain) run(s *Sim, a *Agent) (*Cell, error) {
	if err := b.compiled.Set("__engine", buildScriptEngine(s, a)); err != nil {
		return nil, err
	}
	if err := b.compiled.Set("__agent", scriptAgent(a)); err != nil {
		return nil, err
	}
	if err := b.compiled.Set("__dest", nil); err != nil {
		return nil, err
	}
	if err := b.compiled.Run(); err != nil {
		return nil, fmt.Errorf("script: run %s: %w", b.name, err)
	}
	return cellFromObject(s.Grid, b.compiled.Get("__dest").Object())
}

func scriptAgent(a *Agent) map[string]any {
	m := map[string]any{
		"label":   a.Label,
		"kind":    a.Kind().String(),
		"state":   a.State().String(),
		"x":       a.cell.X,
		"y":       a.cell.Y,
		"queue":   a.cell.QueueDepth,
		"outside": a.cell.Outside,
	}
	switch a.Role.Kind {
	case AgentCustomer:
		m["served"] = a.Role.Customer.Served
		m["leaving"] = a.Role.Customer.Leaving
	case AgentEmployee:
		if t := a.Role.Employee.Till; t != nil {
			m["till"] = []any{t.X, t.Y}
		}
	}
	return m
}

// cellFromObject converts [x, y] to a cell. Undefined yields nil without error.
func cellFromObject(g *Grid, obj tengo.Object) (*Cell, error) {
	if obj == nil {
		return nil, nil
	}
	if _, undefined := obj.(*tengo.Undefined); undefined {
		return nil, nil
	}
	arr, ok := obj.(*tengo.Array)
	if !ok || len(arr.Value) != 2 {
		return nil, fmt.Errorf("script: decide must return [x, y] or undefined, got %s", obj.TypeName())
	}
	x, okX := tengo.ToInt(arr.Value[0])
	y, okY := tengo.ToInt(arr.Value[1])
	if !okX || !okY {
		return nil, fmt.Errorf("script: non-numeric coordinates %s", arr.String())
	}
	c := g.At(x, y)
	if c == nil {
		return nil, fmt.Errorf("script: (%d,%d) is outside the grid", x, y)
	}
	return c, nil
}

func cellObject(c *Cell) tengo.Object {
	if c == nil {
		return tengo.UndefinedValue
	}
	return &tengo.Array{Value: []tengo.Object{&tengo.Int{Value: int64(c.X)}, &tengo.Int{Value: int64(c.Y)}}}
}

// argCell reads an (x, y) argument pair.
func argCell(g *Grid, args []tengo.Object) *Cell {
	if len(args) < 2 {
		return nil
	}
	x, okX := tengo.ToInt(args[0])
	y, okY := tengo.ToInt(args[1])
	if !okX || !okY {
		return nil
	}
	return g.At(x, y)
}

func buildScriptEngine(s *Sim, a *Agent) *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	values["free_cell"] = &tengo.UserFunction{Name: "free_cell", Value: func(args ...tengo.Object) (tengo.Object, error) {
		root := argCell(s.Grid, args)
		if root == nil {
			return tengo.UndefinedValue, nil
		}
		return cellObject(NearestFreeCell(s.Graph(root, true), root, mapset.New[*Cell](), true)), nil
	}}

	values["queue_slot"] = &tengo.UserFunction{Name: "queue_slot", Value: func(args ...tengo.Object) (tengo.Object, error) {
		root := argCell(s.Grid, args)
		if root == nil {
			return tengo.UndefinedValue, nil
		}
		headOnly := len(args) > 2 && !args[2].IsFalsy()
		return cellObject(QueueSlot(s.Graph(root, true), root, headOnly)), nil
	}}

	values["outside_cell"] = &tengo.UserFunction{Name: "outside_cell", Value: func(args ...tengo.Object) (tengo.Object, error) {
		root := argCell(s.Grid, args)
		if root == nil {
			return tengo.UndefinedValue, nil
		}
		return cellObject(NearestOutsideCell(s.Graph(root, true), root)), nil
	}}

	values["cell_cost"] = &tengo.UserFunction{Name: "cell_cost", Value: func(args ...tengo.Object) (tengo.Object, error) {
		c := argCell(s.Grid, args)
		if c == nil {
			return &tengo.Float{Value: 0}, nil
		}
		return &tengo.Float{Value: c.MovementCost()}, nil
	}}

	values["occupied"] = &tengo.UserFunction{Name: "occupied", Value: func(args ...tengo.Object) (tengo.Object, error) {
		c := argCell(s.Grid, args)
		if c == nil || c.Agent != nil {
			return tengo.TrueValue, nil
		}
		return tengo.FalseValue, nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.FalseValue, nil
		}
		msg, _ := tengo.ToString(args[0])
		s.log(a, "brain", "script_log", msg, 0)
		return tengo.TrueValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}
