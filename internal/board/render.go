package board

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// DefaultWidth はカードの描画幅。
const DefaultWidth = 72

// SeverityLabel は深刻度の表示ラベルを返す。
func SeverityLabel(sev model.Severity) string {
	switch sev {
	case model.SeverityMajor:
		return "Major Disruption"
	case model.SeverityModerate:
		return "Moderate Delay"
	case model.SeverityPlanned:
		return "Planned Work"
	default:
		return "Good Service"
	}
}

// LineTypeLabel は路線種別の表示ラベルを返す。
func LineTypeLabel(lt model.LineType) string {
	if lt == model.LineTypeSubway {
		return "Subway"
	}
	return "Rail"
}

// RelativeTime はtからnowまでの経過時間を "Just now" / "Nm ago" / "Nh ago" で表す。
// 24時間以上前は日付を返す。
func RelativeTime(t, now time.Time) string {
	mins := int(now.Sub(t) / time.Minute)
	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case mins/60 < 24:
		return fmt.Sprintf("%dh ago", mins/60)
	default:
		return t.Local().Format("1/2/2006")
	}
}

// Renderer はボードの状態を端末向けテキストに描画する。
type Renderer struct {
	out    io.Writer
	styles styles
	now    func() time.Time
}

// NewRenderer はwに書き込むRendererを生成する。
// 色の有無は出力先の端末能力に従う。widthが0以下ならDefaultWidth。
func NewRenderer(w io.Writer, width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{
		out:    w,
		styles: newStyles(lipgloss.NewRenderer(w), width),
		now:    time.Now,
	}
}

// Render は状態を1画面分書き込む。
func (r *Renderer) Render(s State) error {
	var b strings.Builder
	now := r.now()

	b.WriteString(r.styles.title.Render("MTA Service Alerts"))
	b.WriteString("\n")
	if !s.LastRefreshed.IsZero() {
		b.WriteString(r.styles.muted.Render("Last updated " + RelativeTime(s.LastRefreshed, now)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(r.filterBar(s))
	b.WriteString("\n\n")

	if s.Err != nil {
		b.WriteString(r.styles.errorBox.Render("Error loading alerts\n" + s.Err.Error()))
		b.WriteString("\n\n")
	}

	switch {
	case !s.Loaded && s.Err == nil:
		b.WriteString(r.styles.heading.Render("Loading alerts..."))
		b.WriteString("\n")
		b.WriteString(r.styles.muted.Render("Fetching real-time service alerts from MTA"))
		b.WriteString("\n")
	case len(s.Visible) == 0:
		b.WriteString(r.styles.heading.Render("No alerts found"))
		b.WriteString("\n")
		if len(s.Alerts) == 0 {
			b.WriteString(r.styles.muted.Render("No active service alerts at this time"))
		} else {
			b.WriteString(r.styles.muted.Render("Try adjusting your filters to see more results"))
		}
		b.WriteString("\n")
	default:
		for _, a := range s.Visible {
			b.WriteString(r.card(a, now))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Renderer) filterBar(s State) string {
	option := func(name, value, current string, n int) string {
		text := fmt.Sprintf("%s (%d)", name, n)
		if orAll(current) == value {
			return r.styles.selected.Render(text)
		}
		return text
	}

	c := s.Counts
	transit := []string{
		option("All", All, s.Filter.LineType, c.AllLineTypes()),
		option("Subway", string(model.LineTypeSubway), s.Filter.LineType, c.Subway),
		option("Rail", string(model.LineTypeRail), s.Filter.LineType, c.Rail),
	}
	status := []string{
		option("All Status", All, s.Filter.Severity, c.AllSeverities()),
		option("Major", string(model.SeverityMajor), s.Filter.Severity, c.Major),
		option("Moderate", string(model.SeverityModerate), s.Filter.Severity, c.Moderate),
		option("Planned Work", string(model.SeverityPlanned), s.Filter.Severity, c.Planned),
		option("Good Service", string(model.SeverityMinor), s.Filter.Severity, c.Minor),
	}

	return r.styles.label.Render("Transit Type: ") + strings.Join(transit, "  ") + "\n" +
		r.styles.label.Render("Status:       ") + strings.Join(status, "  ")
}

func (r *Renderer) card(a model.Alert, now time.Time) string {
	color := lineColor(string(a.LineColor))

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		r.styles.badge.Background(color).Render(a.Line),
		" ",
		r.styles.muted.Render("["+LineTypeLabel(a.LineType)+"]"),
		"  ",
		r.styles.severity(string(a.Severity)).Render(SeverityLabel(a.Severity)),
	)

	lines := []string{header, r.styles.heading.Render(a.Title)}
	if a.Description != "" {
		lines = append(lines, a.Description)
	}
	if len(a.AffectedStations) > 0 {
		lines = append(lines, r.styles.label.Render("Affected Stations: ")+strings.Join(a.AffectedStations, ", "))
	}

	footer := r.styles.muted.Render("Updated " + RelativeTime(a.LastUpdated, now))
	if a.ExpectedResolution != "" {
		footer += "  " + r.styles.heading.Render(a.ExpectedResolution)
	}
	lines = append(lines, footer)

	return r.styles.card.BorderForeground(color).Render(strings.Join(lines, "\n"))
}
