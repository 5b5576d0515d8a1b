package db

import (
	"context"
	"testing"
)

func TestPutAndGetSettings(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	got, err := GetSettings(ctx, db, "n8nWebhookUrl", "campaigns")
	if err != nil {
		t.Fatalf("GetSettings on empty db: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no settings on first run, got %v", got)
	}

	err = PutSettings(ctx, db, map[string]string{
		"n8nWebhookUrl": `"https://n8n.local/webhook/abc"`,
		"n8nAuthType":   `"bearer"`,
	})
	if err != nil {
		t.Fatalf("PutSettings failed: %v", err)
	}

	got, err = GetSettings(ctx, db, "n8nWebhookUrl", "n8nAuthType", "missing")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got["n8nWebhookUrl"] != `"https://n8n.local/webhook/abc"` {
		t.Errorf("n8nWebhookUrl = %q", got["n8nWebhookUrl"])
	}
	if got["n8nAuthType"] != `"bearer"` {
		t.Errorf("n8nAuthType = %q", got["n8nAuthType"])
	}
	if _, ok := got["missing"]; ok {
		t.Error("missing key should be absent")
	}

	// Overwrite
	if err := PutSettings(ctx, db, map[string]string{"n8nAuthType": `"none"`}); err != nil {
		t.Fatalf("PutSettings overwrite failed: %v", err)
	}
	got, _ = GetSettings(ctx, db, "n8nAuthType")
	if got["n8nAuthType"] != `"none"` {
		t.Errorf("n8nAuthType after overwrite = %q", got["n8nAuthType"])
	}

	all, err := GetAllSettings(ctx, db)
	if err != nil {
		t.Fatalf("GetAllSettings failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("GetAllSettings len = %d, want 2", len(all))
	}
}

func TestGetSettings_NoKeys(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	got, err := GetSettings(context.Background(), db)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestDeleteSetting(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := PutSettings(ctx, db, map[string]string{"k": `1`}); err != nil {
		t.Fatal(err)
	}
	if err := DeleteSetting(ctx, db, "k"); err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}
	if err := DeleteSetting(ctx, db, "k"); err != nil {
		t.Fatalf("DeleteSetting on missing key failed: %v", err)
	}
	got, _ := GetSettings(ctx, db, "k")
	if len(got) != 0 {
		t.Errorf("key should be gone, got %v", got)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range tests {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}
