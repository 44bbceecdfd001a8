package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DryRunNotifier prints what would be posted without posting it
type DryRunNotifier struct {
	out io.Writer
}

// NewDryRunNotifier creates a new dry-run notifier writing to out, or to
// stdout when out is nil.
func NewDryRunNotifier(out io.Writer) *DryRunNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &DryRunNotifier{out: out}
}

// Notify prints the posts that would be made
func (n *DryRunNotifier) Notify(ctx context.Context, changes []Change) error {
	for i, change := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}
		post := formatTweet(change)
		fmt.Fprintf(n.out, "--- Post %d/%d ---\n", i+1, len(changes))
		fmt.Fprintln(n.out, post)
		fmt.Fprintf(n.out, "\n(Length: %d of %d)\n\n", postLength(post, change.Meeting.SourceURL), maxTweetLength)
	}
	return nil
}
