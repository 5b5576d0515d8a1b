package router

import (
	"strings"

	"github.com/hpungsan/painvault/internal/capture"
)

// Menu item ids. Campaign items are CampaignMenuPrefix + campaign id.
const (
	RootMenuID         = "opal_pain_root"
	GenericMenuID      = "opal_pain_generic"
	CampaignMenuPrefix = "opal_pain_campaign_"
)

// Menu titles
const (
	RootMenuTitle    = "Send to n8n"
	GenericMenuTitle = "Generic (no campaign)"
)

// selectionContext is the only context the menu is offered in.
const selectionContext = "selection"

// MenuItem is one context-menu entry.
type MenuItem struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parentId,omitempty"`
	Title    string   `json:"title"`
	Contexts []string `json:"contexts"`
}

// Menu is the full context-menu tree in creation order: the root first,
// then its children.
type Menu struct {
	Items []MenuItem `json:"items"`
}

// BuildMenu derives the menu from the campaign list. Entries without an id
// are skipped; for duplicate ids the first entry wins.
func BuildMenu(campaigns []capture.Campaign) Menu {
	items := []MenuItem{
		{ID: RootMenuID, Title: RootMenuTitle, Contexts: []string{selectionContext}},
		{ID: GenericMenuID, ParentID: RootMenuID, Title: GenericMenuTitle, Contexts: []string{selectionContext}},
	}
	seen := make(map[string]bool, len(campaigns))
	for _, c := range campaigns {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		items = append(items, MenuItem{
			ID:       CampaignMenuPrefix + c.ID,
			ParentID: RootMenuID,
			Title:    c.DisplayLabel(),
			Contexts: []string{selectionContext},
		})
	}
	return Menu{Items: items}
}

// Children returns the items under the root.
func (m Menu) Children() []MenuItem {
	var out []MenuItem
	for _, it := range m.Items {
		if it.ParentID == RootMenuID {
			out = append(out, it)
		}
	}
	return out
}

// CampaignForMenuItem maps a clicked item id to a campaign id.
// ok is false for ids outside this menu family.
func CampaignForMenuItem(id string) (campaign string, ok bool) {
	switch {
	case id == RootMenuID, id == GenericMenuID:
		return capture.UnspecifiedCampaign, true
	case strings.HasPrefix(id, CampaignMenuPrefix):
		campaign = strings.TrimPrefix(id, CampaignMenuPrefix)
		if campaign == "" {
			campaign = capture.UnspecifiedCampaign
		}
		return campaign, true
	default:
		return "", false
	}
}
