package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/painvault/internal/capture"
)

func TestBuildMenu_Empty(t *testing.T) {
	m := BuildMenu(nil)
	require.Len(t, m.Items, 2)
	require.Equal(t, RootMenuID, m.Items[0].ID)
	require.Equal(t, "Send to n8n", m.Items[0].Title)
	require.Empty(t, m.Items[0].ParentID)
	require.Equal(t, GenericMenuID, m.Items[1].ID)
	require.Equal(t, "Generic (no campaign)", m.Items[1].Title)
	require.Equal(t, RootMenuID, m.Items[1].ParentID)
	require.Equal(t, []string{"selection"}, m.Items[1].Contexts)
}

func TestBuildMenu_Campaigns(t *testing.T) {
	m := BuildMenu([]capture.Campaign{
		{ID: "vibe_memes", Label: "🌈 Vibe Code Memes"},
		{ID: "", Label: "skipped"},
		{ID: "blog_posts"},
		{ID: "vibe_memes", Label: "duplicate"},
	})

	children := m.Children()
	require.Len(t, children, 3)
	require.Equal(t, GenericMenuID, children[0].ID)
	require.Equal(t, "opal_pain_campaign_vibe_memes", children[1].ID)
	require.Equal(t, "🌈 Vibe Code Memes", children[1].Title)
	require.Equal(t, "opal_pain_campaign_blog_posts", children[2].ID)
	require.Equal(t, "blog_posts", children[2].Title)
}

func TestCampaignForMenuItem(t *testing.T) {
	tests := []struct {
		id       string
		campaign string
		ok       bool
	}{
		{RootMenuID, "unspecified", true},
		{GenericMenuID, "unspecified", true},
		{"opal_pain_campaign_vibe_memes", "vibe_memes", true},
		{"opal_pain_campaign_", "unspecified", true},
		{"some_other_extension_item", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			campaign, ok := CampaignForMenuItem(tt.id)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.campaign, campaign)
		})
	}
}
