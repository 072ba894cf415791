package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kylemclaren/claude-office/internal/db"
)

var (
	// Claude brand colors
	claudeOrange  = lipgloss.Color("#d97757")
	claudeBlue    = lipgloss.Color("#6a9bcc")
	claudeGreen   = lipgloss.Color("#788c5d")
	claudeMidGray = lipgloss.Color("#b0aea5")

	primaryColor = claudeOrange
	accentColor  = claudeBlue
	successColor = claudeGreen
	errorColor   = lipgloss.Color("#c45c4a")
	dimTextColor = claudeMidGray

	appStyle = lipgloss.NewStyle().
			Padding(1, 2)

	logoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	tabStyle = lipgloss.NewStyle().
			Foreground(dimTextColor).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Bold(true).
			Padding(0, 1)

	// Board columns
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimTextColor).
			Padding(0, 1)

	focusedColumnStyle = columnStyle.
				BorderForeground(primaryColor)

	columnTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor)

	cardStyle = lipgloss.NewStyle().
			Padding(0, 0)

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(primaryColor).
				Bold(true)

	assigneeStyle = lipgloss.NewStyle().
			Foreground(dimTextColor).
			Italic(true)

	// Status indicators
	statusOK = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	statusFail = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	statusPending = lipgloss.NewStyle().
			Foreground(dimTextColor)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(dimTextColor)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(dimTextColor).
			Italic(true)

	errorMsgStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	successMsgStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	emptyBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimTextColor).
			Foreground(dimTextColor).
			Padding(2, 4).
			Align(lipgloss.Center)

	dividerStyle = lipgloss.NewStyle().
			Foreground(dimTextColor)
)

// requestStatusStyle colors a cron request status
func requestStatusStyle(status db.CronRequestStatus) lipgloss.Style {
	switch status {
	case db.CronRequestApproved:
		return statusOK
	case db.CronRequestRejected:
		return statusFail
	default:
		return statusPending
	}
}
