package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/devkill/internal/port"
)

// Color palette.
var (
	colorGreen = lipgloss.Color("2")
	colorRed   = lipgloss.Color("1")
	colorGray  = lipgloss.Color("8")
	colorWhite = lipgloss.Color("15")
	colorCyan  = lipgloss.Color("6")
	colorBlue  = lipgloss.Color("#4A9EFF")
	colorAmber = lipgloss.Color("#FFB347")
)

// Layout styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(colorWhite)

	groupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			PaddingTop(1)

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	markStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingTop(1)

	// Row styles.
	devRowStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	otherRowStyle = lipgloss.NewStyle()

	// Protocol styles.
	tcpStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	udpStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAmber)

	// Kill confirmation styles.
	dangerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")).
			Background(lipgloss.Color("52")).
			Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	// Info view styles.
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorWhite)
)

// rowStyle highlights dev servers.
func rowStyle(e port.PortEntry) lipgloss.Style {
	if e.IsDevProcess {
		return devRowStyle
	}
	return otherRowStyle
}

// protocolStyle colors TCP blue and UDP amber.
func protocolStyle(p port.Protocol) lipgloss.Style {
	if p == port.UDP {
		return udpStyle
	}
	return tcpStyle
}
