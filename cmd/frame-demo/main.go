package main

import (
	"fmt"
	"image/color"
	"log"
	"unsafe"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"muscle-dreamer/internal/core/democomponents"
	"muscle-dreamer/internal/core/engine"
)

const (
	screenWidth  = 1280
	screenHeight = 720
	entityCount  = 400
)

// Game is a small ebiten.Game driving Manager.ExecuteFrame once per
// Update tick and drawing each alive entity's Position component as a
// dot. It is the only place in this module that imports ebiten: the core
// engine package never depends on rendering.
type Game struct {
	manager *engine.Manager
}

func NewGame() *Game {
	registry := engine.NewComponentRegistry()
	democomponents.Register(registry)
	registry.Lock()

	cfg := engine.DefaultEngineConfig()
	manager := engine.NewManager(registry, cfg)
	manager.RegisterProcess(democomponents.MoveProcess(screenWidth, screenHeight))
	manager.RegisterProcess(democomponents.BounceVelocityProcess(screenWidth, screenHeight))
	manager.RegisterProcess(democomponents.StayAliveProcess())
	manager.StartThreads()

	for i := 0; i < entityCount; i++ {
		manager.AddEntity(democomponents.RandomPrototype(screenWidth, screenHeight))
	}

	return &Game{manager: manager}
}

func (g *Game) Update() error {
	g.manager.ExecuteFrame()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{20, 20, 30, 255})

	n := g.manager.PastEntityCount()
	for i := 0; i < n; i++ {
		raw := g.manager.PastComponent(i, democomponents.TypePosition)
		if raw == nil {
			continue
		}
		pos := *(*democomponents.Position)(unsafe.Pointer(&raw[0]))
		vector.DrawFilledCircle(screen, pos.X, pos.Y, 3, color.RGBA{240, 200, 80, 255}, false)
	}

	d := g.manager.Diagnostics()
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"entities=%d scheduler=%s approximate=%v estimated=%s",
		d.PastEntityCount, d.Scheduler.AlgorithmName, d.Scheduler.Approximate, d.Scheduler.EstimatedFrameTime))
}

func (g *Game) Layout(_, _ int) (int, int) { return screenWidth, screenHeight }

func (g *Game) Run() error {
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("frame-demo")
	return ebiten.RunGame(g)
}

func main() {
	if err := NewGame().Run(); err != nil {
		log.Fatal(err)
	}
}
