package board

import "github.com/ophion/companion/internal/domain/entities"

// Palette is the cyclic order of note background colours
var Palette = []string{
	"bg-yellow-100",
	"bg-blue-100",
	"bg-pink-100",
	"bg-emerald-100",
	"bg-purple-100",
	"bg-orange-100",
	"bg-zinc-800 text-white",
	"bg-red-100",
}

// DefaultColor is the colour of a new note
const DefaultColor = "bg-yellow-100"

// NextSkin returns the skin after s, wrapping to the first
func NextSkin(s entities.NoteSkin) entities.NoteSkin {
	for i, skin := range entities.Skins {
		if skin == s {
			return entities.Skins[(i+1)%len(entities.Skins)]
		}
	}
	return entities.Skins[0]
}

// NextColor returns the palette entry after c. Unknown colours restart the cycle.
func NextColor(c string) string {
	for i, color := range Palette {
		if color == c {
			return Palette[(i+1)%len(Palette)]
		}
	}
	return Palette[0]
}

// TaskTitleFromNote shortens note content to a task title
func TaskTitleFromNote(content string) string {
	runes := []rune(content)
	if len(runes) <= MaxTitleLength {
		return content
	}
	return string(runes[:MaxTitleLength]) + "..."
}
