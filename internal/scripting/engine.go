package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/orbitcore/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. Zone workers call it concurrently,
// so every call into the VM holds mu.
type Engine struct {
	mu       sync.Mutex
	vm       *lua.LState
	log      *zap.Logger
	fallback world.DefaultScript
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("REGION_ANY", lua.LString(world.RegionAny))
	vm.SetGlobal("REGION_STARTER", lua.LString(world.RegionStarter))
	vm.SetGlobal("REGION_MID", lua.LString(world.RegionMid))
	vm.SetGlobal("REGION_LOWER", lua.LString(world.RegionLower))

	e := &Engine{vm: vm, log: log.Named("lua")}

	// core first, then the world hooks
	for _, sub := range []string{"core", "world"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	for _, name := range []string{"mob_stats", "ore_region_class"} {
		if vm.GetGlobal(name) == lua.LNil {
			e.log.Warn("lua hook missing, using built-in rule", zap.String("func", name))
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// MobStats calls the Lua mob_stats function with the template and map id.
// A missing hook or a failing call yields the template's own numbers.
func (e *Engine) MobStats(t *world.MobTemplate, mapID int32) world.MobStats {
	base := e.fallback.MobStats(t, mapID)

	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("mob_stats")
	if fn == lua.LNil {
		return base
	}

	tbl := e.vm.NewTable()
	tbl.RawSetString("id", lua.LNumber(t.ID))
	tbl.RawSetString("name", lua.LString(t.Name))
	tbl.RawSetString("hp", lua.LNumber(t.HP))
	tbl.RawSetString("shield", lua.LNumber(t.Shield))
	tbl.RawSetString("damage", lua.LNumber(t.Damage))
	tbl.RawSetString("speed", lua.LNumber(t.Speed))
	tbl.RawSetString("aggressive", lua.LBool(t.Aggressive))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, tbl, lua.LNumber(mapID)); err != nil {
		e.log.Error("lua mob_stats error", zap.Uint32("template", t.ID), zap.Error(err))
		return base
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua mob_stats returned non-table", zap.Uint32("template", t.ID))
		return base
	}
	return world.MobStats{
		HP:     int32(lNumber(rt, "hp", float64(base.HP))),
		Shield: int32(lNumber(rt, "shield", float64(base.Shield))),
		Damage: int32(lNumber(rt, "damage", float64(base.Damage))),
		Speed:  lNumber(rt, "speed", base.Speed),
	}
}

// OreRegionClass calls the Lua ore_region_class function. Unknown classes
// fall back to the built-in lane rule.
func (e *Engine) OreRegionClass(mapID int32) world.RegionClass {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("ore_region_class")
	if fn == lua.LNil {
		return e.fallback.OreRegionClass(mapID)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(mapID)); err != nil {
		e.log.Error("lua ore_region_class error", zap.Int32("map", mapID), zap.Error(err))
		return e.fallback.OreRegionClass(mapID)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	switch c := world.RegionClass(lua.LVAsString(result)); c {
	case world.RegionAny, world.RegionStarter, world.RegionMid, world.RegionLower:
		return c
	default:
		e.log.Error("lua ore_region_class returned unknown class",
			zap.Int32("map", mapID), zap.String("class", string(c)))
		return e.fallback.OreRegionClass(mapID)
	}
}

// lNumber reads a numeric field, keeping def when absent or not a number.
func lNumber(t *lua.LTable, key string, def float64) float64 {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
