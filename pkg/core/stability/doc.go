// Package stability wraps the layout engine with convergence detection.
//
// A [Controller] is ticked by an external driver (a render loop, a TUI, a
// server goroutine holding a lock). It counts consecutive ticks whose
// average movement stays below a threshold and, once the streak reaches
// StableTicks, publishes one [Snapshot] to its listeners. Persistence and
// messaging layers subscribe through [Controller.OnStable].
//
//	c := stability.New(layout.New(), stability.DefaultConfig())
//	c.OnStable(func(s stability.Snapshot) { store.Save(ctx, project, s.Positions) })
//	_, _ = c.Load(ctx, g, saved)
//	for range ticker.C {
//		c.Tick(time.Second / 60)
//	}
package stability
