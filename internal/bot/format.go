package bot

import (
	"fmt"
	"sort"
	"strings"

	"tweetbridge/internal/model"
)

// FormatSubscriptionList formats a chat's subscriptions for display.
func FormatSubscriptionList(st *model.ChatState) string {
	if st == nil || len(st.Subscriptions) == 0 {
		return "You have no subscriptions yet. Use /add <name> <handle> to follow an account."
	}

	var b strings.Builder
	b.WriteString("Your subscriptions:\n")
	for _, name := range sortedNames(st.Subscriptions) {
		fmt.Fprintf(&b, "\n%s → @%s\n", name, st.Subscriptions[name])
		if terms := st.Filters[name]; len(terms) > 0 {
			fmt.Fprintf(&b, "   filters: %s\n", strings.Join(terms, ", "))
		} else {
			b.WriteString("   no filters\n")
		}
		if cursor := st.Cursors[name]; cursor > 0 {
			fmt.Fprintf(&b, "   last forwarded id: %d\n", cursor)
		}
	}
	return b.String()
}

func sortedNames(subs map[string]string) []string {
	names := make([]string, 0, len(subs))
	for name := range subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
