// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package plugin runs user-supplied Lua scripts as a text classifier.
// A script defines a global function classify(text, labels) that returns a table
// mapping label names to scores.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// ClassifyFunction is the global a script must define.
const ClassifyFunction = "classify"

// DefaultCallTimeout bounds a single script invocation.
const DefaultCallTimeout = 2 * time.Second

// ErrNoScript is returned when no script has been loaded.
var ErrNoScript = errors.New("lua classifier: no script loaded")

// LuaClassifier scores text by calling a Lua script. Interpreter states are pooled
// and sandboxed: only the base, table, string and math libraries are available,
// plus a restricted os table and the router helper module.
type LuaClassifier struct {
	path    string
	timeout time.Duration
	pool    sync.Pool

	mu    sync.RWMutex
	proto *lua.FunctionProto
	gen   uint64
}

type pooledState struct {
	L   *lua.LState
	gen uint64
}

// NewLuaClassifier compiles the script at path.
func NewLuaClassifier(path string, timeout time.Duration) (*LuaClassifier, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	c := &LuaClassifier{path: path, timeout: timeout}
	c.pool = sync.Pool{
		New: func() interface{} {
			return &pooledState{L: newSandbox()}
		},
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the script location.
func (c *LuaClassifier) Path() string {
	return c.path
}

// Reload recompiles the script from disk. On failure the previous script stays active.
func (c *LuaClassifier) Reload() error {
	source, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read lua classifier %s: %w", c.path, err)
	}
	L := newSandbox()
	defer L.Close()
	fn, err := L.LoadString(string(source))
	if err != nil {
		return fmt.Errorf("compile lua classifier %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.proto = fn.Proto
	c.gen++
	c.mu.Unlock()
	log.Infof("lua classifier loaded from %s", c.path)
	return nil
}

// Classify implements intent.TextClassifier. Non-numeric scores and labels not in
// labels are ignored.
func (c *LuaClassifier) Classify(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	c.mu.RLock()
	proto, gen := c.proto, c.gen
	c.mu.RUnlock()
	if proto == nil {
		return nil, ErrNoScript
	}

	ps := c.pool.Get().(*pooledState)
	defer c.putState(ps)
	L := ps.L

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	// Re-run the chunk when the state last saw an older script generation.
	if ps.gen != gen {
		L.Push(L.NewFunctionFromProto(proto))
		if err := L.PCall(0, 0, nil); err != nil {
			return nil, fmt.Errorf("lua classifier init: %w", err)
		}
		ps.gen = gen
	}

	fn := L.GetGlobal(ClassifyFunction)
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("lua classifier: global %q is not a function", ClassifyFunction)
	}

	labelTbl := L.NewTable()
	for _, label := range labels {
		labelTbl.Append(lua.LString(label))
	}

	L.Push(fn)
	L.Push(lua.LString(text))
	L.Push(labelTbl)
	if err := L.PCall(2, 1, nil); err != nil {
		return nil, fmt.Errorf("lua classifier: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua classifier: classify returned %s, want table", ret.Type())
	}

	wanted := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		wanted[label] = struct{}{}
	}
	scores := make(map[string]float64)
	tbl.ForEach(func(k, v lua.LValue) {
		label, ok := k.(lua.LString)
		if !ok {
			return
		}
		score, ok := v.(lua.LNumber)
		if !ok {
			return
		}
		if _, ok := wanted[string(label)]; ok {
			scores[string(label)] = float64(score)
		}
	})
	return scores, nil
}

func (c *LuaClassifier) putState(ps *pooledState) {
	ps.L.SetTop(0)
	c.pool.Put(ps)
}

// newSandbox creates an interpreter with the safe library subset.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	osTbl := L.NewTable()
	L.SetField(osTbl, "time", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	L.SetField(osTbl, "hour", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Now().UTC().Hour()))
		return 1
	}))
	L.SetGlobal("os", osTbl)

	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("module", lua.LNil)

	registerRouterModule(L)
	return L
}

// registerRouterModule installs the router helper table.
func registerRouterModule(L *lua.LState) {
	mod := L.NewTable()

	// router.log(msg)
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		log.Debugf("[lua] %s", L.CheckString(1))
		return 0
	}))

	// router.contains(text, word) -> bool, case-insensitive
	L.SetField(mod, "contains", L.NewFunction(func(L *lua.LState) int {
		text := strings.ToLower(L.CheckString(1))
		word := strings.ToLower(L.CheckString(2))
		L.Push(lua.LBool(strings.Contains(text, word)))
		return 1
	}))

	// router.count(text, words) -> number of words found in text
	L.SetField(mod, "count", L.NewFunction(func(L *lua.LState) int {
		text := strings.ToLower(L.CheckString(1))
		words := L.CheckTable(2)
		n := 0
		words.ForEach(func(_, v lua.LValue) {
			if s, ok := v.(lua.LString); ok && strings.Contains(text, strings.ToLower(string(s))) {
				n++
			}
		})
		L.Push(lua.LNumber(n))
		return 1
	}))

	L.SetGlobal("router", mod)
}
