package billing

// WarningSeverity distinguishes nagging from blocking usage warnings.
type WarningSeverity string

const (
	SeverityWarning WarningSeverity = "warning"
	SeverityError   WarningSeverity = "error"
)

// UsageWarning tells the UI whether and how urgently to surface a usage nag.
type UsageWarning struct {
	Show     bool            `json:"show"`
	Severity WarningSeverity `json:"severity,omitempty"`
	Level    int             `json:"level,omitempty"`
}

// ClassifyUsage maps a percentage-used value onto the warning ladder:
// >=100 error/100, >=95 error/95, >=90 warning/90, >=80 warning/80,
// otherwise no warning is shown.
func ClassifyUsage(percentage float64) UsageWarning {
	switch {
	case percentage >= 100:
		return UsageWarning{Show: true, Severity: SeverityError, Level: 100}
	case percentage >= 95:
		return UsageWarning{Show: true, Severity: SeverityError, Level: 95}
	case percentage >= 90:
		return UsageWarning{Show: true, Severity: SeverityWarning, Level: 90}
	case percentage >= 80:
		return UsageWarning{Show: true, Severity: SeverityWarning, Level: 80}
	default:
		return UsageWarning{}
	}
}
