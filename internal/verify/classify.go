package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/canyonroad/agentsh-runloop/internal/runloop"
)

// blockedSignals are the denial markers a policy layer may leave in command
// output. Any one of them counts as blocked even when the exit status is
// zero: proxies and shims often report a denial in text while the wrapping
// shell still exits cleanly.
var blockedSignals = []string{"blocked", "denied", "permission", "400", "not found"}

// Classify maps one executed probe onto a verdict plus a short reason. It is
// a pure function of its inputs; the full combined output takes part in the
// decision, display truncation happens in reporting only.
func Classify(expect Expectation, result *runloop.ExecutionResult, execErr error) (Verdict, string) {
	if execErr != nil {
		if isTimeout(execErr) {
			return VerdictError, "command timed out"
		}
		return VerdictError, execErr.Error()
	}
	if result == nil {
		return VerdictError, "no execution result"
	}

	output := combinedOutput(result)
	switch expect {
	case ExpectBlocked:
		if result.ExitStatus != 0 || containsBlockedSignal(output) {
			return VerdictPass, ""
		}
		return VerdictFail, "command succeeded with no denial marker"
	case ExpectSuccess:
		if result.ExitStatus == 0 {
			return VerdictPass, ""
		}
		return VerdictFail, fmt.Sprintf("expected exit 0, got %d", result.ExitStatus)
	default:
		return VerdictPass, ""
	}
}

func containsBlockedSignal(output string) bool {
	lower := strings.ToLower(output)
	for _, signal := range blockedSignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}

func combinedOutput(result *runloop.ExecutionResult) string {
	return strings.TrimSpace(result.Stdout + result.Stderr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// truncate caps s at limit runes for display, marking the cut with an
// ellipsis. A non-positive limit disables truncation.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
