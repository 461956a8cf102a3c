package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/kittclouds/mammal/internal/conversation"
	"github.com/kittclouds/mammal/pkg/mptree"
)

// maxPreview bounds message text in one-line listings.
const maxPreview = 72

func printMessage(w io.Writer, msg *conversation.Message) {
	fmt.Fprintf(w, "%-12s [%s] %s\n", msg.Path, msg.Data.Role, preview(msg.Data.Message))
}

func printThread(w io.Writer, thread []*conversation.Message) {
	if len(thread) == 0 {
		fmt.Fprintln(w, "No messages.")
		return
	}
	for _, msg := range thread {
		printMessage(w, msg)
	}
}

func printView(w io.Writer, view mptree.View[conversation.MessageData]) {
	for _, root := range view.Branches() {
		root.Walk(func(b *mptree.Branch[conversation.MessageData], level int) bool {
			fmt.Fprintf(w, "%s%s [%s] %s\n",
				strings.Repeat("  ", level), b.Node.Path, b.Node.Data.Role, preview(b.Node.Data.Message))
			return true
		})
	}
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= maxPreview {
		return text
	}
	return string(r[:maxPreview-3]) + "..."
}
