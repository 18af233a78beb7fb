package bot

import "testing"

func TestParseAction(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Action
	}{
		{"menu root", "menu:root", Action{Kind: ActionMenu, Menu: MenuRoot}},
		{"menu catalogue", "menu:catalogue", Action{Kind: ActionMenu, Menu: MenuCatalogue}},
		{"admin broadcast", "admin:broadcast", Action{Kind: ActionAdmin, Admin: AdminBroadcast}},
		{"pick new category", "pickcat:new", Action{Kind: ActionPickCategory, NewCategory: true}},
		{"pick category id", "pickcat:7", Action{Kind: ActionPickCategory, CategoryID: 7}},
		{"show category", "cat:12", Action{Kind: ActionShowCategory, CategoryID: 12}},
		{"show item", "item:42", Action{Kind: ActionShowItem, ItemID: 42}},
		{"more images", "img:42:10", Action{Kind: ActionMoreImages, ItemID: 42, Offset: 10}},
		{"back", "back:categories", Action{Kind: ActionBackToCategories}},
		{"bid", "bid:42", Action{Kind: ActionBid, ItemID: 42}},
		{"favorite add", "fav:add:42", Action{Kind: ActionFavorite, ItemID: 42, AddFavorite: true}},
		{"favorite remove", "fav:remove:42", Action{Kind: ActionFavorite, ItemID: 42}},
		{"settings toggle", "settings:toggle_notifications", Action{Kind: ActionToggleNotifications}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.data)
			if err != nil {
				t.Fatalf("ParseAction(%q) error: %v", tt.data, err)
			}
			if got != tt.want {
				t.Fatalf("ParseAction(%q) = %+v, want %+v", tt.data, got, tt.want)
			}
		})
	}
}

func TestParseActionRejectsMalformedPayloads(t *testing.T) {
	for _, data := range []string{
		"",
		"noseparator",
		"menu:unknown",
		"admin:sudo",
		"item:abc",
		"img:42",
		"img:x:0",
		"img:42:-1",
		"fav:keep:42",
		"fav:add:x",
		"back:items",
		"settings:other",
		"unknown:1",
	} {
		if _, err := ParseAction(data); err == nil {
			t.Errorf("ParseAction(%q) expected error", data)
		}
	}
}

func TestIsCancel(t *testing.T) {
	for _, text := range []string{"cancel", "CANCEL", " Cancel ", "cAnCeL"} {
		if !isCancel(text) {
			t.Errorf("isCancel(%q) = false, want true", text)
		}
	}
	for _, text := range []string{"", "cancelled", "stop", "cancel please"} {
		if isCancel(text) {
			t.Errorf("isCancel(%q) = true, want false", text)
		}
	}
}

func TestTruncateButtonText(t *testing.T) {
	if got := truncateButtonText("short", 48); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := "AED 100.00 — a very long vintage chronograph title indeed"
	got := truncateButtonText(long, 20)
	if len([]rune(got)) != 20 {
		t.Fatalf("truncated length = %d, want 20", len([]rune(got)))
	}
	if got[len(got)-3:] != "..." {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}
