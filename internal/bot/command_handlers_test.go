package bot

import (
	"strings"
	"testing"
)

func TestCompletedReplyDoesNotSuggestRestarting(t *testing.T) {
	// Resubscribing preserves the cursor and completed flag, so the
	// reply must not promise a fresh start via /stop and /start.
	for _, command := range []string{"/start", "/stop"} {
		if strings.Contains(alreadyCompletedText, command) {
			t.Errorf("Expected completed reply not to mention %s", command)
		}
	}
}
