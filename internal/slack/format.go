package slack

import (
	"fmt"
	"strings"

	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/rules"
	"github.com/blockwatch/blockwatch/internal/utils"
)

// FormatAlerts renders the alerts raised by one observation as a Slack message
func FormatAlerts(obs *database.Observation, alerts []database.Alert) string {
	var sb strings.Builder

	noun := "alert"
	if len(alerts) != 1 {
		noun = "alerts"
	}
	sb.WriteString(fmt.Sprintf("%s *%d new %s* in block *%s*\n", severityEmoji(highest(alerts)), len(alerts), noun, utils.EscapeSlack(obs.BlockID)))

	for _, a := range alerts {
		sb.WriteString(fmt.Sprintf("• %s *%s* (%s): %s\n", severityEmoji(a.Severity), a.AlertType, a.Severity, a.Message))
	}

	sb.WriteString(fmt.Sprintf("\n_Grid %s, row %s, plant %s", obs.GridNumber, obs.RowNumber, obs.PlantNumber))
	if obs.SubmittedBy != "" {
		sb.WriteString(fmt.Sprintf(", reported by %s", utils.EscapeSlack(utils.TruncateText(obs.SubmittedBy, 80))))
	}
	if !obs.SubmittedOn.IsZero() {
		sb.WriteString(fmt.Sprintf(" on %s", obs.SubmittedOn.UTC().Format("2006-01-02 15:04 MST")))
	}
	sb.WriteString("_")

	return sb.String()
}

func highest(alerts []database.Alert) string {
	for _, a := range alerts {
		if a.Severity == string(rules.SeverityHigh) {
			return a.Severity
		}
	}
	return string(rules.SeverityMedium)
}

func severityEmoji(severity string) string {
	switch rules.Severity(severity) {
	case rules.SeverityHigh:
		return ":rotating_light:"
	case rules.SeverityMedium:
		return ":warning:"
	default:
		return ":information_source:"
	}
}
