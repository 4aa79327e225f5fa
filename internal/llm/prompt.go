package llm

import (
	"fmt"
	"strings"

	"github.com/rcliao/shop-memory/internal/model"
)

const (
	promptInteractions   = 5
	interactionMaxLength = 100
)

// BuildMemoryPrompt renders the system prompt for a user's memory. The
// output depends only on its inputs.
func BuildMemoryPrompt(core *model.CoreMemory, recent []model.RecallEvent) string {
	if core == nil {
		core = &model.CoreMemory{RelationshipState: model.RelationshipStranger}
	}

	var b strings.Builder
	b.WriteString("You are a shopping assistant that learns and evolves together with the user.\n\n")
	b.WriteString("USER MEMORY:\n")
	fmt.Fprintf(&b, "- Relationship: %s\n", core.RelationshipState)
	fmt.Fprintf(&b, "- Trust score: %d/100\n", core.TrustScore)

	goals := "none yet"
	if len(core.ActiveGoals) > 0 {
		goals = strings.Join(core.ActiveGoals, ", ")
	}
	fmt.Fprintf(&b, "- Active goals: %s\n", goals)

	if core.PriceRange != nil {
		fmt.Fprintf(&b, "- Price range: %.2f - %.2f\n", core.PriceRange.Min, core.PriceRange.Max)
	}
	if len(core.FavoriteCategories) > 0 {
		fmt.Fprintf(&b, "- Favorite categories: %s\n", strings.Join(core.FavoriteCategories, ", "))
	}
	if len(core.Idiosyncrasies) > 0 {
		fmt.Fprintf(&b, "- Idiosyncrasies: %s\n", strings.Join(core.Idiosyncrasies, ", "))
	}

	if len(recent) > 0 {
		b.WriteString("\nRECENT INTERACTIONS:\n")
		for i, ev := range recent {
			if i == promptInteractions {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", ev.EventType, truncate(ev.DataJSON(), interactionMaxLength))
		}
	}

	b.WriteString("\nTake the user's memory and history into account. Be personal, context-aware and helpful.")
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
