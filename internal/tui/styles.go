package tui

import "github.com/charmbracelet/lipgloss"

// Styles for the watch view. Kept as package vars so custom front-ends can
// restyle the feed without forking the model.
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AFAFD7"))

	PotStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700"))

	TimestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5F5F87"))

	HiddenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#875FAF")).
			Italic(true)

	DeathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F"))

	BanishStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF875F"))

	ChallengeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FAF5F"))

	RecruitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AF5FFF"))

	EndgameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700"))

	AnomalyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFF5F"))

	FeedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D0D0D0"))

	AliveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87D787"))

	DeadStyle = lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("#6C6C6C"))

	RevealedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F"))

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#AFAFD7"))

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	BannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F875F")).
			Padding(0, 1)

	ErrorBannerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#AF0000")).
				Padding(0, 1)
)
