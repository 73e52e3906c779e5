package video_batch

import (
	"fmt"
	"io"
	"strings"
	"time"
)

var separator = strings.Repeat("-", 80)

// WriteSummary prints the counts and elapsed time, followed by every failed link and its reason.
func (r *Report) WriteSummary(w io.Writer) error {
	var b strings.Builder
	b.WriteString("\n===== Done =====\n")
	fmt.Fprintf(&b, "Succeeded: %d\n", r.Succeeded)
	fmt.Fprintf(&b, "Failed:    %d\n", r.Failed())
	fmt.Fprintf(&b, "Skipped:   %d\n", r.Skipped)
	fmt.Fprintf(&b, "Elapsed:   %s\n", formatElapsed(r.Elapsed))
	if len(r.Failures) > 0 {
		b.WriteString("\nFailed links and reasons:\n")
		for _, f := range r.Failures {
			b.WriteString(separator + "\n")
			fmt.Fprintf(&b, "Link:   %s\n", f.Link)
			fmt.Fprintf(&b, "Reason: %s\n", f.Reason)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func formatElapsed(d time.Duration) string {
	seconds := d.Seconds()
	return fmt.Sprintf("%d min %d s (about %.1f s)", int(seconds)/60, int(seconds)%60, seconds)
}
