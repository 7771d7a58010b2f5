package tool_time

import (
	"context"
	"fmt"
	"time"

	"chatgate/src/agent"
)

// Tool name constant
const Name = "get_current_time"

const timePrompt = `Returns the current date and time.

HOW TO USE:
- Optionally provide an IANA timezone name (e.g. "America/New_York",
  "Europe/Berlin"). Defaults to UTC.

FEATURES:
- Reports both an RFC 3339 timestamp and a human-readable form
- Includes the numeric UTC offset of the chosen zone`

// TimeInput represents the parameters for get_current_time
type TimeInput struct {
	Timezone string `json:"timezone,omitempty" description:"IANA timezone name, defaults to UTC"`
}

// TimeOutput represents the response from get_current_time
type TimeOutput struct {
	Timestamp string `json:"timestamp" description:"Current time in RFC 3339 format"`
	Readable  string `json:"readable" description:"Human-readable current time"`
	Timezone  string `json:"timezone" description:"The timezone that was used"`
	UTCOffset string `json:"utc_offset" description:"Numeric UTC offset of the zone"`
	Unix      int64  `json:"unix" description:"Seconds since the Unix epoch"`
}

// Tool returns the get_current_time tool definition.
func Tool() (agent.Tool, error) {
	return agent.NewGenericTool(Name, timePrompt, timeHandler)
}

// now is swapped out by tests.
var now = time.Now

func timeHandler(ctx context.Context, input TimeInput) (TimeOutput, error) {
	zone := input.Timezone
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return TimeOutput{}, fmt.Errorf("unknown timezone: %s", zone)
	}

	t := now().In(loc)
	return TimeOutput{
		Timestamp: t.Format(time.RFC3339),
		Readable:  t.Format("Monday, January 2, 2006 at 3:04:05 PM MST"),
		Timezone:  zone,
		UTCOffset: t.Format("-07:00"),
		Unix:      t.Unix(),
	}, nil
}
