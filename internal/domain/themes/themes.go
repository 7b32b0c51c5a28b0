// Package themes holds the static registry of presentation themes.
package themes

import (
	"fmt"
	"strings"

	"github.com/ophion/companion/internal/domain/entities"
)

type ID string

const (
	Olympus  ID = "OLYMPUS"
	Midnight ID = "MIDNIGHT"
	Zen      ID = "ZEN"
	Minimal  ID = "MINIMAL"
	Ocean    ID = "OCEAN"

	NeonVibe   ID = "NEON_VIBE"
	Stranger   ID = "STRANGER"
	Batman     ID = "BATMAN"
	Anime      ID = "ANIME"
	Cyber      ID = "CYBER"
	Synthwave  ID = "SYNTHWAVE"
	Wizard     ID = "WIZARD"
	Hyperspace ID = "HYPERSPACE"
	Steampunk  ID = "STEAMPUNK"
	Gothic     ID = "GOTHIC"
	Fairytale  ID = "FAIRYTALE"
)

// Default is the theme applied before the user picks one.
const Default = Olympus

type Type string

const (
	TypeStatic Type = "STATIC"
	TypeLive   Type = "LIVE"
)

// Theme is a bundle of presentation class tokens.
type Theme struct {
	ID            ID     `json:"id"`
	Type          Type   `json:"type"`
	Name          string `json:"name"`
	BgClass       string `json:"bgClass"`
	CardClass     string `json:"cardClass"`
	TextPrimary   string `json:"textPrimary"`
	TextSecondary string `json:"textSecondary"`
	Accent        string `json:"accent"`
	ButtonClass   string `json:"buttonClass"`
	BorderClass   string `json:"borderClass"`
}

var registry = []Theme{
	{
		ID:            Olympus,
		Type:          TypeStatic,
		Name:          "Olympus (Light)",
		BgClass:       "bg-slate-50",
		CardClass:     "bg-white/80 backdrop-blur-md shadow-lg border-slate-200",
		TextPrimary:   "text-slate-800",
		TextSecondary: "text-slate-500",
		Accent:        "text-amber-600",
		ButtonClass:   "bg-slate-900 text-white hover:bg-slate-800",
		BorderClass:   "border-slate-200",
	},
	{
		ID:            Midnight,
		Type:          TypeStatic,
		Name:          "Abyss (Dark)",
		BgClass:       "bg-black",
		CardClass:     "bg-zinc-900/90 border-zinc-800",
		TextPrimary:   "text-zinc-100",
		TextSecondary: "text-zinc-400",
		Accent:        "text-blue-500",
		ButtonClass:   "bg-zinc-100 text-black hover:bg-zinc-300",
		BorderClass:   "border-zinc-800",
	},
	{
		ID:            Zen,
		Type:          TypeStatic,
		Name:          "Forest (Nature)",
		BgClass:       "bg-[#f4f7f2]",
		CardClass:     "bg-white/90 shadow-sm border-[#e0e7db]",
		TextPrimary:   "text--[#2c3e28]",
		TextSecondary: "text-[#5c6e58]",
		Accent:        "text-emerald-600",
		ButtonClass:   "bg-[#2c3e28] text-white hover:bg-[#3a5235]",
		BorderClass:   "border-[#e0e7db]",
	},
	{
		ID:            Minimal,
		Type:          TypeStatic,
		Name:          "Minimal White",
		BgClass:       "bg-white",
		CardClass:     "bg-white border-gray-100 shadow-sm",
		TextPrimary:   "text-gray-900",
		TextSecondary: "text-gray-400",
		Accent:        "text-black",
		ButtonClass:   "bg-black text-white hover:opacity-80",
		BorderClass:   "border-gray-100",
	},
	{
		ID:            Ocean,
		Type:          TypeStatic,
		Name:          "Ocean Blue",
		BgClass:       "bg-gradient-to-br from-cyan-50 to-blue-100",
		CardClass:     "bg-white/60 backdrop-blur-md border-blue-100 shadow-sm",
		TextPrimary:   "text-slate-700",
		TextSecondary: "text-slate-400",
		Accent:        "text-cyan-600",
		ButtonClass:   "bg-cyan-600 text-white hover:bg-cyan-700",
		BorderClass:   "border-blue-100",
	},
	{
		ID:            NeonVibe,
		Type:          TypeLive,
		Name:          "Retrowave (Neon)",
		BgClass:       "bg-slate-900",
		CardClass:     "bg-slate-900/40 backdrop-blur-xl border-purple-500/30 shadow-[0_0_15px_rgba(168,85,247,0.15)]",
		TextPrimary:   "text-white",
		TextSecondary: "text-purple-200/70",
		Accent:        "text-pink-500",
		ButtonClass:   "bg-gradient-to-r from-purple-600 to-pink-600 text-white hover:opacity-90",
		BorderClass:   "border-purple-500/30",
	},
	{
		ID:            Stranger,
		Type:          TypeLive,
		Name:          "Stranger Things",
		BgClass:       "bg-[#0a0505]",
		CardClass:     "bg-black/60 backdrop-blur-sm border-red-900/30 shadow-[0_0_20px_rgba(220,38,38,0.1)]",
		TextPrimary:   "text-red-50",
		TextSecondary: "text-red-300/50",
		Accent:        "text-red-600",
		ButtonClass:   "bg-red-900/80 text-white hover:bg-red-800 border border-red-700",
		BorderClass:   "border-red-900/30",
	},
	{
		ID:            Batman,
		Type:          TypeLive,
		Name:          "Gotham City",
		BgClass:       "bg-black",
		CardClass:     "bg-gray-900/80 backdrop-blur-md border-gray-700/50",
		TextPrimary:   "text-gray-200",
		TextSecondary: "text-gray-500",
		Accent:        "text-yellow-500",
		ButtonClass:   "bg-gray-800 text-yellow-500 border border-yellow-500/20 hover:bg-gray-700",
		BorderClass:   "border-gray-700/50",
	},
	{
		ID:            Anime,
		Type:          TypeLive,
		Name:          "Anime Sunset",
		BgClass:       "bg-indigo-900",
		CardClass:     "bg-white/10 backdrop-blur-lg border-white/20",
		TextPrimary:   "text-white",
		TextSecondary: "text-pink-200",
		Accent:        "text-pink-400",
		ButtonClass:   "bg-pink-500 text-white hover:bg-pink-600",
		BorderClass:   "border-white/20",
	},
	{
		ID:            Cyber,
		Type:          TypeLive,
		Name:          "Cyber Drift",
		BgClass:       "bg-[#000510]",
		CardClass:     "bg-[#001020]/80 backdrop-blur border-cyan-500/30",
		TextPrimary:   "text-cyan-50",
		TextSecondary: "text-cyan-300/50",
		Accent:        "text-cyan-400",
		ButtonClass:   "bg-cyan-600/20 text-cyan-300 border border-cyan-500 hover:bg-cyan-600/40",
		BorderClass:   "border-cyan-500/30",
	},
	{
		ID:            Synthwave,
		Type:          TypeLive,
		Name:          "Synthwave 84",
		BgClass:       "bg-[#1a0b2e]",
		CardClass:     "bg-[#2d1b4e]/80 backdrop-blur-md border-fuchsia-500/30 shadow-[0_0_20px_rgba(217,70,239,0.1)]",
		TextPrimary:   "text-fuchsia-50",
		TextSecondary: "text-fuchsia-300/60",
		Accent:        "text-cyan-400",
		ButtonClass:   "bg-gradient-to-r from-fuchsia-600 to-cyan-600 text-white hover:brightness-110",
		BorderClass:   "border-fuchsia-500/30",
	},
	{
		ID:            Wizard,
		Type:          TypeLive,
		Name:          "Wizard's Study",
		BgClass:       "bg-[#1c110a]",
		CardClass:     "bg-[#1c110a]/80 backdrop-blur-sm border-amber-900/50",
		TextPrimary:   "text-amber-100",
		TextSecondary: "text-amber-300/50",
		Accent:        "text-amber-500",
		ButtonClass:   "bg-[#3e2723] text-amber-200 border border-amber-800 hover:bg-[#4e342e]",
		BorderClass:   "border-amber-900/50",
	},
	{
		ID:            Hyperspace,
		Type:          TypeLive,
		Name:          "Hyperspace",
		BgClass:       "bg-black",
		CardClass:     "bg-slate-900/90 backdrop-blur-md border-blue-900/50",
		TextPrimary:   "text-slate-100",
		TextSecondary: "text-slate-400",
		Accent:        "text-blue-400",
		ButtonClass:   "bg-blue-900/50 text-blue-100 border border-blue-500/30 hover:bg-blue-800/50",
		BorderClass:   "border-blue-900/50",
	},
	{
		ID:            Steampunk,
		Type:          TypeLive,
		Name:          "Steampunk",
		BgClass:       "bg-[#1a1613]",
		CardClass:     "bg-[#2c241b]/90 backdrop-blur-sm border-amber-700/40",
		TextPrimary:   "text-[#e6d5ac]",
		TextSecondary: "text-[#8c7853]",
		Accent:        "text-[#ff9800]",
		ButtonClass:   "bg-gradient-to-b from-[#5d4037] to-[#3e2723] text-[#e6d5ac] border border-[#8d6e63] hover:brightness-110",
		BorderClass:   "border-amber-700/40",
	},
	{
		ID:            Gothic,
		Type:          TypeLive,
		Name:          "Gothic Castle",
		BgClass:       "bg-[#0f1115]",
		CardClass:     "bg-[#1a1d23]/85 backdrop-blur-md border-slate-700/50",
		TextPrimary:   "text-slate-200",
		TextSecondary: "text-slate-500",
		Accent:        "text-red-700",
		ButtonClass:   "bg-slate-800 text-slate-200 border border-slate-600 hover:bg-slate-700",
		BorderClass:   "border-slate-700/50",
	},
	{
		ID:            Fairytale,
		Type:          TypeLive,
		Name:          "Fairytale",
		BgClass:       "bg-pink-50",
		CardClass:     "bg-white/40 backdrop-blur-lg border-white/60 shadow-[0_4px_30px_rgba(0,0,0,0.1)]",
		TextPrimary:   "text-slate-800",
		TextSecondary: "text-purple-700/60",
		Accent:        "text-pink-500",
		ButtonClass:   "bg-gradient-to-r from-pink-400 to-purple-400 text-white shadow-lg shadow-pink-500/20 hover:scale-105",
		BorderClass:   "border-white/60",
	},
}

var byID = func() map[ID]Theme {
	m := make(map[ID]Theme, len(registry))
	for _, t := range registry {
		m[t.ID] = t
	}
	return m
}()

// All returns every theme, static ones first.
func All() []Theme {
	out := make([]Theme, len(registry))
	copy(out, registry)
	return out
}

// ByType returns the themes of the given type in registry order.
func ByType(t Type) []Theme {
	var out []Theme
	for _, theme := range registry {
		if theme.Type == t {
			out = append(out, theme)
		}
	}
	return out
}

// Lookup resolves a theme id case-insensitively.
func Lookup(id string) (Theme, error) {
	theme, ok := byID[ID(strings.ToUpper(strings.TrimSpace(id)))]
	if !ok {
		return Theme{}, fmt.Errorf("%w: %s", entities.ErrThemeNotFound, id)
	}
	return theme, nil
}
