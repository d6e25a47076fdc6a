package ingest

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// unixSecondsCutoff is 2100-01-01T00:00:00Z in epoch seconds. Numeric chat
// timestamps below it are seconds, anything else is already milliseconds.
const unixSecondsCutoff = 4102444800

// maxMillis bounds every numeric millisecond value so offsets between two
// resolved times cannot overflow int64.
const maxMillis = math.MaxInt64 / 1000

// roundMillis rounds f to whole milliseconds, rejecting values outside
// ±maxMillis.
func roundMillis(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	r := math.Round(f)
	if r > maxMillis || r < -maxMillis {
		return 0, false
	}
	return int64(r), true
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// genericLayouts extends isoLayouts with the date/time spellings chat exports
// commonly split across "date" and "time" fields.
var genericLayouts = append(append([]string{}, isoLayouts...),
	"2006-01-02 15:04",
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04:05 PM",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006 15:04",
	"January 2, 2006",
	time.RFC1123Z,
	time.RFC1123,
)

// parseISO resolves an ISO-8601 date-time to epoch milliseconds. Values
// without an offset are read as UTC.
func parseISO(s string) (int64, bool) {
	return parseLayouts(s, isoLayouts)
}

// parseGenericDateTime is the lenient parse used for chat-log date/time
// fields.
func parseGenericDateTime(s string) (int64, bool) {
	return parseLayouts(s, genericLayouts)
}

func parseLayouts(s string, layouts []string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// parseClock converts "HH:MM:SS", "MM:SS" or "SS" into milliseconds. Any
// non-numeric field leaves the value unresolved.
func parseClock(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var seconds float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		seconds = seconds*60 + v
	}
	return roundMillis(seconds * 1000)
}

// parseUnixTimestamp reads a Slack-style numeric timestamp ("1706540400.000100")
// as epoch milliseconds.
func parseUnixTimestamp(v any) (int64, bool) {
	var f float64
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		n, ok := asNumber(v)
		if !ok {
			return 0, false
		}
		f = n
	}
	if f < unixSecondsCutoff {
		return roundMillis(f * 1000)
	}
	return roundMillis(f)
}

var cueTimeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})[,.](\d{3})$`)

// parseCueTime converts an SRT cue time to milliseconds. Malformed values
// resolve to 0.
func parseCueTime(s string) int64 {
	m := cueTimeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	h, _ := strconv.ParseInt(m[1], 10, 64)
	mins, _ := strconv.ParseInt(m[2], 10, 64)
	sec, _ := strconv.ParseInt(m[3], 10, 64)
	ms, _ := strconv.ParseInt(m[4], 10, 64)
	return h*3600000 + mins*60000 + sec*1000 + ms
}

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)

// parseChatExportTime resolves a WhatsApp "date, time" pair to epoch
// milliseconds. The date is "a/b/c"; a > 12 means day-first, otherwise the
// month-first reading is taken. Two-digit years are 20xx.
func parseChatExportTime(date, clock string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(date), "/")
	if len(parts) != 3 {
		return 0, false
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		nums[i] = n
	}
	day, month, year := nums[1], nums[0], nums[2]
	if nums[0] > 12 {
		day, month = nums[0], nums[1]
	}
	if year < 100 {
		year += 2000
	}

	m := clockRe.FindStringSubmatch(strings.TrimSpace(exportMarks.Replace(clock)))
	if m == nil {
		return 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second := 0
	if m[3] != "" {
		second, _ = strconv.Atoi(m[3])
	}
	switch strings.ToUpper(m[4]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 12 {
			hour += 12
		}
	}
	if month < 1 || month > 12 || hour > 23 || minute > 59 || second > 59 {
		return 0, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes overflow (31/02 becomes 03/03); treat that as invalid.
	if t.Day() != day || int(t.Month()) != month {
		return 0, false
	}
	return t.UnixMilli(), true
}

// asNumber reports the numeric value of a decoded JSON scalar.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// numberMillis rounds a numeric JSON value to whole milliseconds.
func numberMillis(v any) Millis {
	f, ok := asNumber(v)
	if !ok {
		return Unresolved
	}
	ms, ok := roundMillis(f)
	if !ok {
		return Unresolved
	}
	return Resolved(ms)
}
