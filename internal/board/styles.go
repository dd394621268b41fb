package board

import "github.com/charmbracelet/lipgloss"

// lineColors はMTAの路線カラー。
var lineColors = map[string]lipgloss.Color{
	"red":         lipgloss.Color("#EE352E"),
	"green":       lipgloss.Color("#00933C"),
	"purple":      lipgloss.Color("#B933AD"),
	"blue":        lipgloss.Color("#0039A6"),
	"orange":      lipgloss.Color("#FF6319"),
	"light-green": lipgloss.Color("#6CBE45"),
	"brown":       lipgloss.Color("#996633"),
	"gray":        lipgloss.Color("#A7A9AC"),
	"yellow":      lipgloss.Color("#FCCC0A"),
	"dark-gray":   lipgloss.Color("#808183"),
	"metro-north": lipgloss.Color("#0078C6"),
	"lirr":        lipgloss.Color("#0F61A9"),
}

var (
	// Color palette
	colorMajor    = lipgloss.Color("#FF6B6B")
	colorModerate = lipgloss.Color("#FFD93D")
	colorPlanned  = lipgloss.Color("#4A90E2")
	colorMuted    = lipgloss.Color("#6C757D")
	colorWhite    = lipgloss.Color("#FFFFFF")
)

// styles は出力先ごとのレンダラーに紐づくスタイル一式。
type styles struct {
	title    lipgloss.Style
	muted    lipgloss.Style
	label    lipgloss.Style
	errorBox lipgloss.Style
	card     lipgloss.Style
	badge    lipgloss.Style
	heading  lipgloss.Style
	major    lipgloss.Style
	moderate lipgloss.Style
	planned  lipgloss.Style
	minor    lipgloss.Style
	selected lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, width int) styles {
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(colorWhite),
		muted: r.NewStyle().
			Foreground(colorMuted),
		label: r.NewStyle().
			Foreground(colorMuted).
			Bold(true),
		errorBox: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMajor).
			Foreground(colorMajor).
			Padding(0, 1).
			Width(width),
		card: r.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			Padding(0, 1).
			MarginBottom(1).
			Width(width),
		badge: r.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Padding(0, 1),
		heading: r.NewStyle().
			Bold(true),
		major: r.NewStyle().
			Foreground(colorMajor).
			Bold(true),
		moderate: r.NewStyle().
			Foreground(colorModerate).
			Bold(true),
		planned: r.NewStyle().
			Foreground(colorPlanned).
			Bold(true),
		minor: r.NewStyle().
			Foreground(colorMuted),
		selected: r.NewStyle().
			Bold(true).
			Underline(true),
	}
}

func (s styles) severity(sev string) lipgloss.Style {
	switch sev {
	case "major":
		return s.major
	case "moderate":
		return s.moderate
	case "planned":
		return s.planned
	default:
		return s.minor
	}
}

func lineColor(c string) lipgloss.Color {
	if col, ok := lineColors[c]; ok {
		return col
	}
	return lineColors["gray"]
}
