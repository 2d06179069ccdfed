// Package brew wraps the Homebrew binary as an opaque collaborator:
// arguments in, exit status plus combined output out. Nothing here parses
// brew's output beyond passing it along for log excerpting.
package brew

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type Runner struct {
	bin string
	log logx.Logger
}

func New(bin string, log logx.Logger) *Runner {
	if strings.TrimSpace(bin) == "" {
		bin = "brew"
	}
	return &Runner{bin: bin, log: log}
}

// Available reports whether the brew binary can be found at all. A missing
// package manager is a fatal precondition for the whole run, checked before
// any step executes.
func (r *Runner) Available() error {
	if _, err := exec.LookPath(r.bin); err != nil {
		return fmt.Errorf("package manager %q not found: %w", r.bin, err)
	}
	return nil
}

// Invoke runs one brew command and returns its exit status plus combined
// stdout/stderr. A context deadline surfaces as ok=false with a note
// appended to the output; timeouts are not a distinct state.
func (r *Runner) Invoke(ctx context.Context, args ...string) (bool, string) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.bin, args...)
	cmd.Env = append(os.Environ(),
		"HOMEBREW_NO_AUTO_UPDATE=1",
		"HOMEBREW_NO_COLOR=1",
		"HOMEBREW_NO_ENV_HINTS=1",
		"NONINTERACTIVE=1",
	)
	out, err := cmd.CombinedOutput()
	output := string(out)

	ok := err == nil
	if ctx.Err() != nil {
		ok = false
		output += fmt.Sprintf("\n(brew %s aborted: %v)", strings.Join(args, " "), ctx.Err())
	} else if err != nil {
		output += fmt.Sprintf("\n(brew %s failed: %v)", strings.Join(args, " "), err)
	}

	r.log.Debug("brew command finished",
		logx.String("args", strings.Join(args, " ")),
		logx.Bool("ok", ok),
		logx.Duration("took", time.Since(start)))
	return ok, output
}
