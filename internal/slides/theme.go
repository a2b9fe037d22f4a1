package slides

// ThemeColors is the palette handed to asset prompts and to the renderer.
type ThemeColors struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Text       string `json:"text"`
	TextLight  string `json:"text_light"`
	Accent     string `json:"accent"`
}

// Theme is a named deck-wide color scheme.
type Theme struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Colors ThemeColors `json:"colors"`
}

const defaultThemeID = "corporate-blue"

// BuiltinThemes lists the shipped palettes in presentation order.
var BuiltinThemes = []Theme{
	{
		ID:   "corporate-blue",
		Name: "商务深蓝",
		Colors: ThemeColors{
			Primary:    "#1E40AF",
			Secondary:  "#EFF6FF",
			Background: "#FFFFFF",
			Text:       "#1F2937",
			TextLight:  "#4B5563",
			Accent:     "#2563EB",
		},
	},
	{
		ID:   "emerald-growth",
		Name: "翡翠森系",
		Colors: ThemeColors{
			Primary:    "#065F46",
			Secondary:  "#ECFDF5",
			Background: "#FFFFFF",
			Text:       "#064E3B",
			TextLight:  "#374151",
			Accent:     "#10B981",
		},
	},
	{
		ID:   "minimal-gray",
		Name: "极简黑白",
		Colors: ThemeColors{
			Primary:    "#111827",
			Secondary:  "#F3F4F6",
			Background: "#FFFFFF",
			Text:       "#000000",
			TextLight:  "#4B5563",
			Accent:     "#374151",
		},
	},
	{
		ID:   "tech-purple",
		Name: "科技紫韵",
		Colors: ThemeColors{
			Primary:    "#5B21B6",
			Secondary:  "#F5F3FF",
			Background: "#FFFFFF",
			Text:       "#1F2937",
			TextLight:  "#4C1D95",
			Accent:     "#7C3AED",
		},
	},
	{
		ID:   "warm-orange",
		Name: "活力暖橙",
		Colors: ThemeColors{
			Primary:    "#C2410C",
			Secondary:  "#FFF7ED",
			Background: "#FFFFFF",
			Text:       "#431407",
			TextLight:  "#78350F",
			Accent:     "#EA580C",
		},
	},
}

// ThemeByID resolves a theme id, falling back to the default palette for
// unknown or empty ids.
func ThemeByID(id string) Theme {
	for _, theme := range BuiltinThemes {
		if theme.ID == id {
			return theme
		}
	}
	return ThemeByID(defaultThemeID)
}
