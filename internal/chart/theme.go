package chart

// Theme names the two supported palettes.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var lightPalette = []string{
	"#00a86b", "#2563eb", "#db2777", "#d97706",
	"#7c3aed", "#059669", "#dc2626", "#ca8a04",
}

var darkPalette = []string{
	"#4ade80", "#60a5fa", "#f472b6", "#fbbf24",
	"#a78bfa", "#34d399", "#fb7185", "#fcd34d",
}

// ApplyTheme colors a figure for the requested theme. The structure
// of the figure is untouched; only presentation fields change.
func ApplyTheme(fig *Figure, theme Theme) {
	switch theme {
	case ThemeDark:
		fig.Layout.PlotColor = "rgba(30, 30, 30, 0.9)"
		fig.Layout.PaperColor = "rgba(20, 20, 20, 0.95)"
		fig.Layout.FontColor = "#ffffff"
		fig.Layout.FontFamily = "Arial, sans-serif"
		fig.Layout.ColorScheme = darkPalette
	default:
		fig.Layout.PlotColor = "rgba(248, 249, 250, 0.8)"
		fig.Layout.PaperColor = "white"
		fig.Layout.FontColor = "#2c3e50"
		fig.Layout.FontFamily = "Arial, sans-serif"
		fig.Layout.ColorScheme = lightPalette
	}
}
