package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner animates a message and the elapsed time on stderr while a long
// step runs. It stops on Stop or when its parent context ends.
type Spinner struct {
	message string
	out     io.Writer

	parent context.Context
	ctx    context.Context
	halt   context.CancelFunc

	wg   sync.WaitGroup
	once sync.Once
}

// newSpinnerWithContext returns a stopped spinner bound to ctx. A nil ctx
// means context.Background.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	if ctx == nil {
		ctx = context.Background()
	}
	sctx, halt := context.WithCancel(ctx)
	return &Spinner{message: message, out: os.Stderr, parent: ctx, ctx: sctx, halt: halt}
}

// Start draws frames until the spinner is stopped.
func (s *Spinner) Start() {
	s.wg.Add(1)
	go s.run(time.Now())
}

func (s *Spinner) run(start time.Time) {
	defer s.wg.Done()
	tick := time.NewTicker(spinnerInterval)
	defer tick.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-s.ctx.Done():
			fmt.Fprint(s.out, "\r\033[K")
			return
		case now := <-tick.C:
			glyph := spinnerFrames[frame%len(spinnerFrames)]
			elapsed := now.Sub(start).Truncate(100 * time.Millisecond)
			fmt.Fprintf(s.out, "\r%s %s %s", styleIconSpinner.Render(glyph),
				StyleDim.Render(s.message), StyleDim.Render(elapsed.String()))
		}
	}
}

// Stop clears the line and waits for the animation to end. Extra calls and
// calls without Start do nothing.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		s.halt()
		s.wg.Wait()
	})
}

// StopWithError stops the spinner and reports message as a failure.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the spinner ended because its parent context
// did.
func (s *Spinner) Cancelled() bool {
	return s.parent.Err() != nil
}
