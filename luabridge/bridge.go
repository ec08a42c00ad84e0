// Package luabridge embeds a Lua runtime as a system host: scripts declare
// the component tags they need and a handler function, and run against a
// depot storage through the same deferred-mutation bridge native systems use.
package luabridge

import (
	"fmt"

	"github.com/TheBitDrifter/depot"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Bridge owns one Lua state and a system registry bound to one storage. It
// is not safe for concurrent use; the Lua state is single-threaded.
type Bridge struct {
	state   *lua.LState
	sto     depot.Storage
	systems *depot.SystemRegistry
	log     *zap.Logger
}

type Option func(*Bridge)

// WithState supplies a pre-configured Lua state; the Bridge takes ownership.
func WithState(L *lua.LState) Option {
	return func(b *Bridge) { b.state = L }
}

func WithLogger(log *zap.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithRegistry shares a system registry so native and scripted systems can
// live side by side under one namespace.
func WithRegistry(r *depot.SystemRegistry) Option {
	return func(b *Bridge) { b.systems = r }
}

func New(sto depot.Storage, opts ...Option) *Bridge {
	b := &Bridge{
		sto: sto,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.state == nil {
		b.state = lua.NewState()
	}
	if b.systems == nil {
		b.systems = depot.NewSystemRegistry()
	}
	return b
}

func (b *Bridge) Close() {
	b.state.Close()
}

func (b *Bridge) Registry() *depot.SystemRegistry {
	return b.systems
}

// RegisterSystem compiles code, which must evaluate to a handler function,
// and registers it under name. Every tag must already be registered in the
// component registry; an unknown tag fails here, not silently at run time.
// The previous registration's kind is reported, as with native systems.
func (b *Bridge) RegisterSystem(name string, required, excluded []string, code string) (depot.SystemKind, error) {
	reqComps, err := resolveTags(required)
	if err != nil {
		return depot.SystemKindNone, err
	}
	excComps, err := resolveTags(excluded)
	if err != nil {
		return depot.SystemKindNone, err
	}

	fn, err := b.compile(name, code)
	if err != nil {
		return depot.SystemKindNone, err
	}

	sys := &luaSystem{
		bridge:   b,
		name:     name,
		required: reqComps,
		excluded: excComps,
		fn:       fn,
	}
	prev := b.systems.Register(name, sys)
	b.log.Debug("lua system registered",
		zap.String("system", name),
		zap.Strings("required", required),
		zap.Strings("excluded", excluded))
	return prev, nil
}

// Run invokes the named system over the storage. Per-entity script failures
// come back as ScriptErrors; the batch itself still completes.
func (b *Bridge) Run(name string) ([]depot.ScriptError, error) {
	return b.systems.Run(b.sto, name)
}

func resolveTags(tags []string) ([]depot.Component, error) {
	comps := make([]depot.Component, len(tags))
	for i, tag := range tags {
		c, err := depot.LookupTag(tag)
		if err != nil {
			return nil, err
		}
		comps[i] = c
	}
	return comps, nil
}

func (b *Bridge) compile(name, code string) (*lua.LFunction, error) {
	chunk, err := b.state.LoadString(code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile system %q: %w", name, err)
	}
	b.state.Push(chunk)
	if err := b.state.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("failed to evaluate system %q: %w", name, err)
	}
	ret := b.state.Get(-1)
	b.state.Pop(1)
	fn, ok := ret.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("system %q must evaluate to a function, got %s", name, ret.Type())
	}
	return fn, nil
}

// luaSystem adapts a compiled Lua handler to the depot System interface.
type luaSystem struct {
	bridge   *Bridge
	name     string
	required []depot.Component
	excluded []depot.Component
	fn       *lua.LFunction
}

var _ depot.System = &luaSystem{}

func (s *luaSystem) Required() []depot.Component { return s.required }
func (s *luaSystem) Excluded() []depot.Component { return s.excluded }
func (s *luaSystem) Kind() depot.SystemKind      { return depot.SystemKindScripted }

// Process marshals the matched row into a Lua table, calls the handler, and
// queues the handler's writes and structural requests back through the
// bridge. The handler sees {entity, components, despawn, add, remove, spawn}.
func (s *luaSystem) Process(ctx *depot.SystemContext) error {
	L := s.bridge.state

	compsTable := L.NewTable()
	protos := make(map[string][]depot.Value, len(s.required))
	for _, comp := range s.required {
		vals, err := ctx.Values(comp)
		if err != nil {
			return err
		}
		protos[comp.Tag()] = vals
		names := depot.FieldNames(comp)
		fieldTable := L.NewTable()
		for i, fieldName := range names {
			fieldTable.RawSetString(fieldName, valueToLua(L, vals[i]))
		}
		compsTable.RawSetString(comp.Tag(), fieldTable)
	}

	ctxTable := L.NewTable()
	ctxTable.RawSetString("entity", entityToLua(L, ctx.Entity()))
	ctxTable.RawSetString("components", compsTable)
	s.bindMutators(ctxTable, ctx)

	if err := L.CallByParam(lua.P{Fn: s.fn, NRet: 0, Protect: true}, ctxTable); err != nil {
		return err
	}

	// Write the script's component state back as queued value writes.
	for _, comp := range s.required {
		lv := compsTable.RawGetString(comp.Tag())
		fieldTable, ok := lv.(*lua.LTable)
		if !ok {
			return fmt.Errorf("script replaced components.%s with %s", comp.Tag(), lv.Type())
		}
		proto := protos[comp.Tag()]
		names := depot.FieldNames(comp)
		vals := make([]depot.Value, len(names))
		for i, fieldName := range names {
			v, err := luaToValue(fieldTable.RawGetString(fieldName), proto[i])
			if err != nil {
				return fmt.Errorf("component %s field %s: %w", comp.Tag(), fieldName, err)
			}
			vals[i] = v
		}
		if err := ctx.SetValues(comp, vals); err != nil {
			return err
		}
	}
	return nil
}

// bindMutators installs the structural mutation entry points. Each one only
// queues a request; nothing structural happens while the iteration runs.
func (s *luaSystem) bindMutators(ctxTable *lua.LTable, ctx *depot.SystemContext) {
	L := s.bridge.state

	ctxTable.RawSetString("despawn", L.NewFunction(func(L *lua.LState) int {
		ctx.Despawn()
		return 0
	}))

	ctxTable.RawSetString("add", L.NewFunction(func(L *lua.LState) int {
		tag := L.CheckString(1)
		comp, err := depot.LookupTag(tag)
		if err != nil {
			L.RaiseError("add: %v", err)
		}
		var vals []depot.Value
		if L.GetTop() >= 2 {
			vals, err = tableToValues(comp, L.CheckTable(2))
			if err != nil {
				L.RaiseError("add %s: %v", tag, err)
			}
		}
		if err := ctx.Add(comp, vals); err != nil {
			L.RaiseError("add %s: %v", tag, err)
		}
		return 0
	}))

	ctxTable.RawSetString("remove", L.NewFunction(func(L *lua.LState) int {
		tag := L.CheckString(1)
		comp, err := depot.LookupTag(tag)
		if err != nil {
			L.RaiseError("remove: %v", err)
		}
		if err := ctx.Remove(comp); err != nil {
			L.RaiseError("remove %s: %v", tag, err)
		}
		return 0
	}))

	ctxTable.RawSetString("spawn", L.NewFunction(func(L *lua.LState) int {
		spec := L.CheckTable(1)
		var comps []depot.Component
		var vals [][]depot.Value
		var convErr error
		spec.ForEach(func(k, v lua.LValue) {
			if convErr != nil {
				return
			}
			tag, ok := k.(lua.LString)
			if !ok {
				convErr = fmt.Errorf("spawn: component tags must be strings, got %s", k.Type())
				return
			}
			fieldTable, ok := v.(*lua.LTable)
			if !ok {
				convErr = fmt.Errorf("spawn %s: component values must be tables, got %s", tag, v.Type())
				return
			}
			comp, err := depot.LookupTag(string(tag))
			if err != nil {
				convErr = err
				return
			}
			fieldVals, err := tableToValues(comp, fieldTable)
			if err != nil {
				convErr = fmt.Errorf("spawn %s: %w", tag, err)
				return
			}
			comps = append(comps, comp)
			vals = append(vals, fieldVals)
		})
		if convErr != nil {
			L.RaiseError("%v", convErr)
		}
		if err := ctx.Spawn(comps, vals); err != nil {
			L.RaiseError("spawn: %v", err)
		}
		return 0
	}))
}
