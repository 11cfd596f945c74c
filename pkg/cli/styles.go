package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Gabiro3/blimp2/pkg/types"
)

var (
	ColorPrimary = lipgloss.Color("#0EA5E9") // Sky - brand color
	ColorSuccess = lipgloss.Color("#22C55E")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorError   = lipgloss.Color("#EF4444")
	ColorInfo    = lipgloss.Color("#3B82F6")
	ColorSubtle  = lipgloss.Color("#6B7280")
	ColorMuted   = lipgloss.Color("#9CA3AF")
)

const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "!"
	SymbolSkipped = "-"
	SymbolInfo    = "→"
	SymbolBullet  = "•"
)

var (
	BrandStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Width(12)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorSubtle)

	TableCellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	CodeStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	LinkStyle = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Underline(true)

	HintStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)
)

func confidenceStyle(c types.Confidence) lipgloss.Style {
	switch c {
	case types.ConfidenceHigh:
		return SuccessStyle
	case types.ConfidenceMedium:
		return WarningStyle
	}
	return DimStyle
}

func queryTypeStyle(q types.QueryType) lipgloss.Style {
	if q == types.QueryTypeInformational {
		return InfoStyle
	}
	return WarningStyle
}
