package session

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/fitwire/fitwire/telemetry"
)

// kindColors assigns a console color per metric kind so interleaved streams
// from several sensors stay readable.
var kindColors = map[telemetry.Kind]color.Attribute{
	telemetry.KindHeartRate:      color.FgRed,
	telemetry.KindCyclingPower:   color.FgYellow,
	telemetry.KindCyclingSpeed:   color.FgCyan,
	telemetry.KindCyclingCadence: color.FgGreen,
}

// renderMetric formats one report line, e.g. "heart_rate: 72 bpm". With
// colors enabled the metric name is tinted by kind.
func renderMetric(m telemetry.Metric, colors bool) string {
	if !colors {
		return m.String()
	}

	attr, ok := kindColors[m.Kind]
	if !ok {
		return m.String()
	}

	c := color.New(attr)
	c.EnableColor()
	return fmt.Sprintf("%s: %d %s", c.Sprint(m.Kind.String()), m.Value, m.Kind.Unit())
}
