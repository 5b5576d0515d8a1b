package capture

import "strings"

// Campaign is a user-defined bucket for captures.
type Campaign struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DisplayLabel returns the label, falling back to the id.
func (c Campaign) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.ID
}

// DefaultCampaigns is shown by the HUD when the user has configured none.
var DefaultCampaigns = []Campaign{
	{ID: "vibe_memes", Label: "🌈 Vibe Code Memes"},
	{ID: "blog_posts", Label: "📚 Ghost Blog"},
	{ID: "sora_video", Label: "🎬 Sora Video"},
	{ID: "fb_live", Label: "📡 FB Live Topic"},
}

// DefaultCampaignList returns a fresh copy of DefaultCampaigns.
func DefaultCampaignList() []Campaign {
	out := make([]Campaign, len(DefaultCampaigns))
	copy(out, DefaultCampaigns)
	return out
}

// NormalizeCampaigns trims ids and labels, drops entries without an id,
// and fills empty labels with the id. Order and duplicates are preserved.
func NormalizeCampaigns(in []Campaign) []Campaign {
	out := make([]Campaign, 0, len(in))
	for _, c := range in {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		label := strings.TrimSpace(c.Label)
		if label == "" {
			label = id
		}
		out = append(out, Campaign{ID: id, Label: label})
	}
	return out
}

// FindCampaign looks a campaign up by id. With duplicate ids the last entry wins.
func FindCampaign(list []Campaign, id string) (Campaign, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].ID == id {
			return list[i], true
		}
	}
	return Campaign{}, false
}
