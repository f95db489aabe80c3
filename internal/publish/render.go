package publish

import (
	"fmt"
	"strings"

	"github.com/geotherm/geopress/internal/store"
)

const maxRenderedReasons = 5

// Render formats a queue item as the plain-text post body.
func Render(topic *store.Topic, item *store.QueueItem) string {
	var b strings.Builder

	header := "[BACKFILL][DISCOVERY]"
	if item.ItemType == store.ItemTypeRSS {
		header = "[RSS]"
	}
	fmt.Fprintf(&b, "%s %s\n", header, topic.Name)
	fmt.Fprintf(&b, "Score: %d\n", item.Score)

	if len(item.Reasons) > 0 {
		reasons := item.Reasons
		if len(reasons) > maxRenderedReasons {
			reasons = reasons[:maxRenderedReasons]
		}
		fmt.Fprintf(&b, "Reasons: %s\n", strings.Join(reasons, ", "))
	}

	if item.Snippet != "" {
		fmt.Fprintf(&b, "Query: %s\n", item.Snippet)
	}
	fmt.Fprintf(&b, "Source: %s\n", item.Source)
	if item.URL != "" {
		fmt.Fprintf(&b, "Link: %s\n", item.URL)
	}

	tags := []string{"#backfill", "#discovery"}
	if item.ItemType == store.ItemTypeRSS {
		tags = []string{"#rss"}
	}
	if topic.RegionKey != "" {
		tags = append(tags, "#"+topic.RegionKey)
	}
	fmt.Fprintf(&b, "Tags: %s", strings.Join(tags, " "))

	return b.String()
}
