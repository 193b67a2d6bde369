package telemetry

import "fmt"

// Thresholds are the advisory funnel limits for one source.
type Thresholds struct {
	MinEligibleRatio        float64
	MaxUnknownLocationRatio float64
}

// DefaultThresholds apply when no configuration is given.
var DefaultThresholds = Thresholds{
	MinEligibleRatio:        0.5,
	MaxUnknownLocationRatio: 0.4,
}

// Policy resolves thresholds per source, falling back to Default.
type Policy struct {
	Default   Thresholds
	Overrides map[string]Thresholds
}

// For returns the thresholds for source.
func (p Policy) For(source string) Thresholds {
	if th, ok := p.Overrides[source]; ok {
		return th
	}
	return p.Default
}

// AlarmKind names the threshold that was breached.
type AlarmKind string

const (
	AlarmLowEligible      AlarmKind = "low_eligible_ratio"
	AlarmUnknownLocations AlarmKind = "high_unknown_location_ratio"
)

// Alarm is an advisory threshold breach for one source in one run.
type Alarm struct {
	Source    string
	RunID     string
	Kind      AlarmKind
	Ratio     float64
	Threshold float64
}

func (a Alarm) String() string {
	switch a.Kind {
	case AlarmLowEligible:
		return fmt.Sprintf("%s: eligible ratio %.0f%% is below %.0f%%", a.Source, a.Ratio*100, a.Threshold*100)
	case AlarmUnknownLocations:
		return fmt.Sprintf("%s: unknown-location ratio %.0f%% is above %.0f%%", a.Source, a.Ratio*100, a.Threshold*100)
	default:
		return fmt.Sprintf("%s: %s %.2f (threshold %.2f)", a.Source, a.Kind, a.Ratio, a.Threshold)
	}
}

// Evaluate checks a summary against thresholds. A ratio with an empty
// denominator is not evaluated. A zero threshold disables its check.
func Evaluate(sum Summary, th Thresholds) []Alarm {
	var alarms []Alarm
	if sum.Raw > 0 && th.MinEligibleRatio > 0 {
		if r := sum.EligibleRatio(); r < th.MinEligibleRatio {
			alarms = append(alarms, Alarm{
				Source: sum.Source, RunID: sum.RunID,
				Kind: AlarmLowEligible, Ratio: r, Threshold: th.MinEligibleRatio,
			})
		}
	}
	if sum.Eligible > 0 && th.MaxUnknownLocationRatio > 0 {
		if r := sum.UnknownLocationRatio(); r > th.MaxUnknownLocationRatio {
			alarms = append(alarms, Alarm{
				Source: sum.Source, RunID: sum.RunID,
				Kind: AlarmUnknownLocations, Ratio: r, Threshold: th.MaxUnknownLocationRatio,
			})
		}
	}
	return alarms
}
