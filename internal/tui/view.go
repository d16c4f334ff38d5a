package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/f3rmion/mediscribe/internal/chart"
	"github.com/mattn/go-runewidth"
)

// View renders the UI
func (m AppModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	sections := []string{
		m.renderTitle(),
		m.renderPatient(),
		m.renderPanes(),
	}
	if m.state.HasResult() {
		sections = append(sections, m.renderResult())
	}
	if m.state.ConfirmingReset {
		sections = append(sections, m.renderConfirm())
	} else {
		sections = append(sections, m.renderFooter())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m AppModel) renderTitle() string {
	title := TitleStyle.Render("해온 MediScribe")
	sub := SubtitleStyle.Render(" Keyword-Based AI Assistant")

	var status string
	switch {
	case m.state.Listening:
		status = RecordingStyle.Render("● Recording")
	case m.state.Loading:
		status = LoadingStyle.Render(m.spinner.View() + " 생성 중")
	}

	line := title + sub
	if status != "" {
		gap := max(m.width-lipgloss.Width(line)-lipgloss.Width(status)-1, 1)
		line += strings.Repeat(" ", gap) + status
	}
	return line
}

func (m AppModel) renderPatient() string {
	var genders []string
	for _, g := range chart.Genders {
		style := GenderStyle
		if g == m.state.Patient.Gender {
			style = GenderActiveStyle
		}
		genders = append(genders, style.Render(g.Label()))
	}

	gender := strings.Join(genders, "")
	if m.focus == focusGender {
		gender = HelpKeyStyle.Render("‹") + gender + HelpKeyStyle.Render("›")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		m.fieldLabel("성함", focusName), m.name.View(), "  ",
		m.fieldLabel("나이", focusAge), m.age.View(), "  ",
		m.fieldLabel("성별", focusGender), gender,
	)
}

func (m AppModel) fieldLabel(label string, f focusArea) string {
	style := LabelStyle
	if m.focus == f {
		style = style.Foreground(ColorAccent)
	}
	return style.Render(label + " ")
}

func (m AppModel) renderPanes() string {
	width := m.paneWidth()

	header := PaneTitleStyle.Render("대화 녹음")
	if m.state.Listening {
		header += "  " + RecordingStyle.Render("● Recording")
	} else if m.state.SpeechUnsupported {
		header += "  " + HelpStyle.Render("(사용 불가)")
	}
	left := m.paneStyle(false).
		Width(width).
		Render(header + "\n" + m.transcript.View())

	right := m.paneStyle(m.focus == focusMemo).
		Width(width).
		Render(PaneTitleStyle.Render("직접 메모") + "\n" + m.memo.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m AppModel) renderResult() string {
	var b strings.Builder

	header := PaneTitleStyle.Render("통합 분석 차트 (Keyword-Based)")
	if m.state.CanCopy() {
		if m.state.CopyConfirmed {
			header += "  " + CopiedStyle.Render("✓ 복사 완료")
		} else {
			header += "  " + HelpStyle.Render("ctrl+y 텍스트 복사")
		}
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(SummaryStyle.Render(truncate(chart.Summary(m.state.Patient), m.result.Width)))
	b.WriteString("\n")

	switch {
	case m.state.Loading:
		b.WriteString(LoadingStyle.Render(m.spinner.View() + " 핵심 단어 위주로 요약하고 있습니다..."))
	case m.state.Error != "":
		b.WriteString(ErrorStyle.Render(wrapText(m.state.Error, m.result.Width)))
		// A guard message leaves an earlier chart in place and copyable.
		if m.state.Chart != "" {
			b.WriteString("\n" + m.result.View())
		}
	default:
		b.WriteString(m.result.View())
	}

	style := ResultStyle
	if m.focus == focusResult {
		style = ResultFocusedStyle
	}
	return style.Width(max(m.width-4, 20)).Render(b.String())
}

func (m AppModel) renderConfirm() string {
	box := ConfirmStyle.Render("작성 중인 내용을 삭제하고 초기화할까요?\n\n" +
		HelpKeyStyle.Render("ctrl+n") + " 네, 초기화합니다    " +
		HelpKeyStyle.Render("esc") + " 취소")
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box)
}

func (m AppModel) renderFooter() string {
	record := "음성 기록 시작"
	if m.state.Listening {
		record = "기록 중단"
	}

	parts := []string{
		helpItem("tab", "이동", true),
		helpItem("ctrl+r", record, m.state.CanRecord()),
		helpItem("ctrl+g", "차트 생성", m.state.CanGenerate()),
		helpItem("ctrl+y", "복사", m.state.CanCopy()),
		helpItem("ctrl+n", "새 환자", true),
		helpItem("f1", "도움말", true),
	}

	footer := strings.Join(parts, HelpStyle.Render(" • "))
	if m.state.Error != "" && !m.state.HasResult() {
		footer = ErrorStyle.Render(m.state.Error) + "\n" + footer
	}
	return footer
}

func helpItem(key, desc string, enabled bool) string {
	if !enabled {
		return HelpDisabledStyle.Render(key + " " + desc)
	}
	return HelpKeyStyle.Render(key) + " " + HelpStyle.Render(desc)
}

// renderHelp renders the help overlay
func (m AppModel) renderHelp() string {
	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorSecondary).
		MarginTop(1)

	keyStyle := HelpKeyStyle.Width(12)
	descStyle := ValueStyle

	rows := [][2]string{
		{"tab", "다음 입력칸"},
		{"shift+tab", "이전 입력칸"},
		{"ctrl+r", "음성 기록 시작/중단"},
		{"ctrl+g", "키워드 차트 생성"},
		{"ctrl+y", "차트 복사"},
		{"ctrl+n", "새 환자 진료 시작 (초기화)"},
		{"pgup/pgdn", "차트 스크롤"},
		{"←/→ space", "성별 선택"},
		{"ctrl+c", "종료"},
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("MediScribe"))
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("Keys"))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(keyStyle.Render(r[0]) + descStyle.Render(r[1]) + "\n")
	}
	b.WriteString("\n" + HelpStyle.Italic(true).Render("Press any key to close"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSecondary).
		Padding(1, 2).
		Width(50)

	// Center the help box
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(b.String()))
}

// wrapText wraps every line of s to width display cells. Words wider than
// the width are broken by rune.
func wrapText(s string, width int) string {
	if width <= 0 {
		width = 60
	}

	var out []string
	for _, line := range strings.Split(s, "\n") {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var current strings.Builder
	currentWidth := 0

	flush := func() {
		lines = append(lines, current.String())
		current.Reset()
		currentWidth = 0
	}

	for _, word := range words {
		for runewidth.StringWidth(word) > width {
			if currentWidth > 0 {
				flush()
			}
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				_, size := utf8.DecodeRuneInString(word)
				head = word[:size]
			}
			lines = append(lines, head)
			word = word[len(head):]
		}
		if word == "" {
			continue
		}

		wordWidth := runewidth.StringWidth(word)
		if currentWidth+wordWidth+1 > width && currentWidth > 0 {
			flush()
		}
		if currentWidth > 0 {
			current.WriteString(" ")
			currentWidth++
		}
		current.WriteString(word)
		currentWidth += wordWidth
	}
	if current.Len() > 0 {
		flush()
	}
	return lines
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
