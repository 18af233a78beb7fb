package bot

import (
	"fmt"
	"sort"

	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/money"
)

const maxButtonChars = 48

func mainMenuKeyboard(isAdmin bool) Keyboard {
	kb := Keyboard{
		{{Text: "🗂️ Catalogue", Data: "menu:catalogue"}},
		{
			{Text: "🪙 My bids", Data: "menu:my_bids"},
			{Text: "⭐ My favorites", Data: "menu:favorites"},
		},
		{{Text: "⚙️ My settings", Data: "menu:settings"}},
	}
	if isAdmin {
		kb = append(kb, []Button{{Text: "🛡️ Admin panel", Data: "menu:admin"}})
	}
	return kb
}

func adminMenuKeyboard() Keyboard {
	return Keyboard{
		{
			{Text: "🆕 Add category", Data: "admin:add_category"},
			{Text: "📦 Add item", Data: "admin:add_item"},
		},
		{
			{Text: "🗑 Remove item", Data: "admin:remove_item"},
			{Text: "🗑 Remove category", Data: "admin:remove_category"},
		},
		{
			{Text: "🛑 Close item", Data: "admin:close_item"},
			{Text: "📢 Broadcast", Data: "admin:broadcast"},
		},
		{{Text: "🔔 Notify new lots", Data: "admin:notify_new"}},
		{{Text: "⬅️ Main menu", Data: "menu:root"}},
	}
}

func mainMenuOnlyKeyboard() Keyboard {
	return Keyboard{{{Text: "⬅️ Main menu", Data: "menu:root"}}}
}

func settingsMenuKeyboard(muted bool) Keyboard {
	toggle := "🔕 Mute updates"
	if muted {
		toggle = "🔔 Enable updates"
	}
	return Keyboard{
		{{Text: toggle, Data: "settings:toggle_notifications"}},
		{{Text: "⬅️ Main menu", Data: "menu:root"}},
	}
}

func categoriesKeyboard(categories []catalog.Category) Keyboard {
	kb := categoryRows(categories, "cat")
	kb = append(kb, []Button{{Text: "⬅️ Main menu", Data: "menu:root"}})
	return kb
}

func categoryPickerKeyboard(categories []catalog.Category) Keyboard {
	kb := categoryRows(categories, "pickcat")
	kb = append(kb, []Button{
		{Text: "➕ New category", Data: "pickcat:new"},
		{Text: "⬅️ Main menu", Data: "menu:root"},
	})
	return kb
}

// categoryRows lays categories out two per row.
func categoryRows(categories []catalog.Category, prefix string) Keyboard {
	var kb Keyboard
	for start := 0; start < len(categories); start += 2 {
		end := start + 2
		if end > len(categories) {
			end = len(categories)
		}
		row := make([]Button, 0, 2)
		for _, c := range categories[start:end] {
			row = append(row, Button{Text: c.Name, Data: fmt.Sprintf("%s:%d", prefix, c.ID)})
		}
		kb = append(kb, row)
	}
	return kb
}

// itemsKeyboard labels each item with its best (or start) price, open
// items first, one per row.
func itemsKeyboard(items []catalog.Item, bestByItem map[int64]int64) Keyboard {
	sorted := make([]catalog.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Open && !sorted[j].Open
	})

	var kb Keyboard
	for _, item := range sorted {
		price := item.StartPriceCents
		if best, ok := bestByItem[item.ID]; ok {
			price = best
		}
		marker := ""
		if !item.Open {
			marker = "🔴 "
		}
		label := truncateButtonText(fmt.Sprintf("%s%s — %s", marker, money.FormatCents(price), item.Title), maxButtonChars)
		kb = append(kb, []Button{{Text: label, Data: fmt.Sprintf("item:%d", item.ID)}})
	}

	kb = append(kb, []Button{
		{Text: "⬅️ Categories", Data: "back:categories"},
		{Text: "⬅️ Main menu", Data: "menu:root"},
	})
	return kb
}

func itemActionKeyboard(item catalog.Item, viewer *viewerContext) Keyboard {
	var row []Button
	if item.Open {
		row = append(row, Button{Text: "💸 Place bid", Data: fmt.Sprintf("bid:%d", item.ID)})
	}
	if viewer != nil {
		if viewer.isFavorite {
			row = append(row, Button{Text: "❌ Remove favorite", Data: fmt.Sprintf("fav:remove:%d", item.ID)})
		} else {
			row = append(row, Button{Text: "⭐ Add favorite", Data: fmt.Sprintf("fav:add:%d", item.ID)})
		}
	}
	if len(row) == 0 {
		return nil
	}
	return Keyboard{row}
}

func moreImagesKeyboard(itemID int64, nextOffset, total int) Keyboard {
	remaining := total - nextOffset
	return Keyboard{{{
		Text: fmt.Sprintf("Show more images (%d)", remaining),
		Data: fmt.Sprintf("img:%d:%d", itemID, nextOffset),
	}}}
}

func truncateButtonText(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	if maxChars <= 3 {
		return "..."
	}
	return string(runes[:maxChars-3]) + "..."
}
