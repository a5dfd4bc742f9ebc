// Package agents describes the agents a session can be assigned to and the
// picker that assigns them.
package agents

import (
	"strings"
)

// AutoID is the picker choice that lets the shell pick an agent.
const AutoID = "auto"

// DefaultAgent receives conversations nothing else claims.
const DefaultAgent = "UI Agent"

// Agent is one entry of the catalog.
type Agent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Tag          string   `json:"tag"`
	Description  string   `json:"description"`
	Subscribed   bool     `json:"subscribed"`
	Capabilities []string `json:"capabilities"`
	Keywords     []string `json:"-"`
}

var catalog = []Agent{
	{
		ID:          "ui-agent",
		Name:        "UI Agent",
		Tag:         "Design & UX",
		Description: "Design systems, user interfaces, and user experience optimization",
		Subscribed:  true,
		Capabilities: []string{
			"Wireframe and mockup creation",
			"Design system development",
			"User experience audits",
			"Accessibility compliance",
		},
		Keywords: []string{"design", "redesign", "dashboard", "ui", "ux", "layout", "component", "wireframe", "accessibility", "engagement"},
	},
	{
		ID:          "seo-agent",
		Name:        "SEO Agent",
		Tag:         "SEO & Content",
		Description: "Search optimization, content analysis, and ranking improvements",
		Subscribed:  true,
		Capabilities: []string{
			"Technical SEO audits",
			"Keyword research and analysis",
			"Content optimization",
			"Backlink analysis and strategy",
		},
		Keywords: []string{"seo", "keyword", "search", "ranking", "content", "backlink", "organic"},
	},
	{
		ID:          "performance-marketing-agent",
		Name:        "Performance Marketing Agent",
		Tag:         "Marketing Analytics",
		Description: "Campaign optimization, ROI analysis, and conversion tracking",
		Subscribed:  false,
		Capabilities: []string{
			"Campaign performance analysis",
			"A/B testing and optimization",
			"ROI and ROAS tracking",
			"Audience segmentation",
		},
		Keywords: []string{"roi", "roas", "conversion", "ctr", "cpc", "a/b", "performance", "ads", "bid"},
	},
	{
		ID:          "campaign-agent",
		Name:        "Campaign Agent",
		Tag:         "Campaign Management",
		Description: "Multi-channel campaign management and audience targeting",
		Subscribed:  true,
		Capabilities: []string{
			"Multi-channel campaign setup",
			"Audience targeting and personas",
			"Content calendar planning",
			"Campaign performance monitoring",
		},
		Keywords: []string{"campaign", "audience", "persona", "calendar", "launch", "channel", "newsletter"},
	},
	{
		ID:          "merchandising-agent",
		Name:        "Merchandising Agent",
		Tag:         "E-commerce",
		Description: "Product catalog optimization and inventory management",
		Subscribed:  false,
		Capabilities: []string{
			"Product catalog optimization",
			"Inventory management",
			"Pricing strategy analysis",
			"Product recommendation engines",
		},
		Keywords: []string{"product", "catalog", "inventory", "pricing", "price", "merchandising", "sku", "stock"},
	},
}

// All returns the catalog in sidebar order.
func All() []Agent {
	out := make([]Agent, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds an agent by its label.
func Lookup(name string) (Agent, bool) {
	for _, a := range catalog {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// Resolve maps a picker id to an agent label. AutoID resolves to DefaultAgent.
func Resolve(id string) (string, bool) {
	if id == AutoID {
		return DefaultAgent, true
	}
	for _, a := range catalog {
		if a.ID == id {
			return a.Name, true
		}
	}
	return "", false
}

// Route picks the agent whose keywords best match text. Ties go to the agent
// listed first; no match at all goes to DefaultAgent.
func Route(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '/')
	})

	best, bestScore := DefaultAgent, 0
	for _, a := range catalog {
		score := 0
		for _, w := range words {
			for _, kw := range a.Keywords {
				if w == kw || strings.HasPrefix(w, kw) && len(kw) > 3 {
					score++
					break
				}
			}
		}
		if score > bestScore {
			best, bestScore = a.Name, score
		}
	}
	return best
}
