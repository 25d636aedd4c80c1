package gcal

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	icalDateFormat     = "20060102"
	icalDateTimeFormat = "20060102T150405Z"
	icalLocalFormat    = "20060102T150405"
)

// Frequency is the repeat unit of a Recurrence.
type Frequency int

const (
	FrequencyNone Frequency = iota
	Secondly
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = map[Frequency]string{
	Secondly: "SECONDLY",
	Minutely: "MINUTELY",
	Hourly:   "HOURLY",
	Daily:    "DAILY",
	Weekly:   "WEEKLY",
	Monthly:  "MONTHLY",
	Yearly:   "YEARLY",
}

// frequencyRules names the by-rule each frequency carries. Monthly shares
// BYDAY with weekly, so monthly rules express nth-weekday patterns.
var frequencyRules = map[Frequency]string{
	Secondly: "BYSECOND",
	Minutely: "BYMINUTE",
	Hourly:   "BYHOUR",
	Weekly:   "BYDAY",
	Monthly:  "BYDAY",
	Yearly:   "BYYEARDAY",
}

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

// String returns the capitalized name, e.g. "Weekly".
func (f Frequency) String() string {
	name, ok := frequencyNames[f]
	if !ok {
		return "None"
	}
	return name[:1] + strings.ToLower(name[1:])
}

// ByRule returns the RRULE part name holding this frequency's values, or ""
// when the frequency takes none.
func (f Frequency) ByRule() string {
	return frequencyRules[f]
}

// ParseFrequency accepts a frequency name in any case.
func ParseFrequency(name string) (Frequency, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for f, n := range frequencyNames {
		if n == upper {
			return f, nil
		}
	}
	return FrequencyNone, fmt.Errorf("%w: unknown frequency %q", ErrRecurrenceValue, name)
}

// Recurrence is a repeat rule attached to an Event. It encodes to and
// decodes from the DTSTART, DTEND and RRULE lines of RFC 2445.
type Recurrence struct {
	Start       time.Time
	End         time.Time
	AllDay      bool
	Frequency   Frequency
	ByValues    []string
	Interval    int
	RepeatUntil time.Time

	// extra keeps RRULE parts this type does not model (WKST, BYMONTHDAY,
	// COUNT) so a decoded rule encodes back without losing them.
	extra []string
}

// NewRecurrence returns a timed recurrence with the given window and
// frequency.
func NewRecurrence(start, end time.Time, freq Frequency, values ...string) (*Recurrence, error) {
	r := &Recurrence{}
	if err := r.SetTimes(start, end, false); err != nil {
		return nil, err
	}
	if err := r.SetFrequency(freq, values...); err != nil {
		return nil, err
	}
	return r, nil
}

// SetTimes sets the first occurrence. For all-day rules only the dates
// of start and end are used.
func (r *Recurrence) SetTimes(start, end time.Time, allDay bool) error {
	if start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrRecurrenceValue)
	}
	if !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrRecurrenceValue, end, start)
	}
	r.Start = start
	r.End = end
	r.AllDay = allDay
	return nil
}

// SetFrequency sets the repeat unit and its by-rule values.
func (r *Recurrence) SetFrequency(freq Frequency, values ...string) error {
	if _, ok := frequencyNames[freq]; !ok {
		return fmt.Errorf("%w: frequency is required", ErrRecurrenceValue)
	}
	if err := validateByValues(freq, values); err != nil {
		return err
	}
	r.Frequency = freq
	r.ByValues = append([]string(nil), values...)
	return nil
}

// SetFrequencyMap takes the map form of a rule: exactly one frequency name
// mapped to its by-values, plus an optional "interval" key.
func (r *Recurrence) SetFrequencyMap(rule map[string][]string) error {
	var (
		freq     Frequency
		values   []string
		interval int
		found    int
	)

	for key, vals := range rule {
		if strings.EqualFold(key, "interval") {
			if len(vals) != 1 {
				return fmt.Errorf("%w: interval takes one value", ErrRecurrenceValue)
			}
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 1 {
				return fmt.Errorf("%w: invalid interval %q", ErrRecurrenceValue, vals[0])
			}
			interval = n
			continue
		}
		f, err := ParseFrequency(key)
		if err != nil {
			return err
		}
		freq, values = f, vals
		found++
	}

	if found != 1 {
		return fmt.Errorf("%w: expected exactly one frequency, got %d", ErrRecurrenceValue, found)
	}
	if err := r.SetFrequency(freq, values...); err != nil {
		return err
	}
	r.Interval = interval
	return nil
}

// FrequencyMap returns the rule in map form, e.g. {"Weekly": ["TU"]}.
func (r *Recurrence) FrequencyMap() map[string][]string {
	if r.Frequency == FrequencyNone {
		return map[string][]string{}
	}
	rule := map[string][]string{
		r.Frequency.String(): append([]string{}, r.ByValues...),
	}
	if r.Interval > 0 {
		rule["interval"] = []string{strconv.Itoa(r.Interval)}
	}
	return rule
}

func (r *Recurrence) SetInterval(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative interval %d", ErrRecurrenceValue, n)
	}
	r.Interval = n
	return nil
}

// SetRepeatUntil sets the last date the rule may produce. A zero time
// clears it.
func (r *Recurrence) SetRepeatUntil(until time.Time) error {
	if !until.IsZero() && !r.Start.IsZero() && dateOf(until).Before(dateOf(r.Start)) {
		return fmt.Errorf("%w: repeat until %s is before start", ErrRecurrenceValue, until.Format(time.DateOnly))
	}
	r.RepeatUntil = until
	return nil
}

// Validate checks the rule as a whole and confirms it can be expanded.
func (r *Recurrence) Validate() error {
	if r.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrRecurrenceValue)
	}
	if !r.End.IsZero() && r.End.Before(r.Start) {
		return fmt.Errorf("%w: end is before start", ErrRecurrenceValue)
	}
	if r.Interval < 0 {
		return fmt.Errorf("%w: negative interval %d", ErrRecurrenceValue, r.Interval)
	}
	if !r.RepeatUntil.IsZero() && dateOf(r.RepeatUntil).Before(dateOf(r.Start)) {
		return fmt.Errorf("%w: repeat until is before start", ErrRecurrenceValue)
	}
	_, err := r.RRule()
	return err
}

// String encodes the rule as DTSTART, DTEND and RRULE lines.
func (r *Recurrence) String() string {
	var sb strings.Builder

	sb.WriteString(r.timeLine("DTSTART", r.Start))
	if !r.End.IsZero() {
		sb.WriteString(r.timeLine("DTEND", r.End))
	}

	sb.WriteString("RRULE:")
	sb.WriteString(r.ruleValue())
	sb.WriteString("\n")

	return sb.String()
}

// ruleValue is the RRULE property value, without the name.
func (r *Recurrence) ruleValue() string {
	var sb strings.Builder
	for _, part := range r.ruleParts() {
		sb.WriteString(part)
		sb.WriteString(";")
	}
	if !r.RepeatUntil.IsZero() {
		sb.WriteString("UNTIL=")
		sb.WriteString(r.RepeatUntil.Format(icalDateFormat))
	}
	return sb.String()
}

// ruleParts lists every RRULE part except UNTIL, which is encoded as a
// date and applied in the start's location.
func (r *Recurrence) ruleParts() []string {
	parts := []string{"FREQ=" + frequencyNames[r.Frequency]}
	if r.Interval > 0 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if rule := r.Frequency.ByRule(); rule != "" && len(r.ByValues) > 0 {
		parts = append(parts, rule+"="+strings.Join(r.ByValues, ","))
	}
	return append(parts, r.extra...)
}

func (r *Recurrence) timeLine(name string, t time.Time) string {
	if r.AllDay {
		return name + ";VALUE=DATE:" + t.Format(icalDateFormat) + "\n"
	}
	return name + ";VALUE=DATE-TIME:" + t.UTC().Format(icalDateTimeFormat) + "\n"
}

// ParseRecurrence decodes recurrence text. VTIMEZONE blocks are skipped and
// TZID parameters resolve the location of floating times.
func ParseRecurrence(text string) (*Recurrence, error) {
	r := &Recurrence{}
	inTimezone := false
	sawRule := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.EqualFold(line, "BEGIN:VTIMEZONE"):
			inTimezone = true
			continue
		case strings.EqualFold(line, "END:VTIMEZONE"):
			inTimezone = false
			continue
		case inTimezone:
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("%w: malformed line %q", ErrRecurrenceValue, line)
		}
		name, params, _ := strings.Cut(key, ";")

		switch strings.ToUpper(name) {
		case "DTSTART":
			t, allDay, err := parseICalTime(value, params)
			if err != nil {
				return nil, err
			}
			r.Start = t
			r.AllDay = allDay
		case "DTEND":
			t, _, err := parseICalTime(value, params)
			if err != nil {
				return nil, err
			}
			r.End = t
		case "RRULE":
			if err := r.parseRule(value); err != nil {
				return nil, err
			}
			sawRule = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecurrenceValue, err)
	}

	if !sawRule {
		return nil, fmt.Errorf("%w: no RRULE line", ErrRecurrenceValue)
	}
	return r, nil
}

// parseRule reads an RRULE value. Parts may come in any order, so the
// by-rule is picked out only once FREQ is known.
func (r *Recurrence) parseRule(value string) error {
	var pending [][2]string
	for _, part := range strings.Split(value, ";") {
		if part == "" {
			continue
		}
		key, val, found := strings.Cut(part, "=")
		if !found {
			return fmt.Errorf("%w: malformed rule part %q", ErrRecurrenceValue, part)
		}
		key = strings.ToUpper(key)

		switch key {
		case "FREQ":
			f, err := ParseFrequency(val)
			if err != nil {
				return err
			}
			r.Frequency = f
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: invalid interval %q", ErrRecurrenceValue, val)
			}
			r.Interval = n
		case "UNTIL":
			t, _, err := parseICalTime(val, "")
			if err != nil {
				return err
			}
			r.RepeatUntil = t
		default:
			pending = append(pending, [2]string{key, val})
		}
	}

	if r.Frequency == FrequencyNone {
		return fmt.Errorf("%w: RRULE without FREQ", ErrRecurrenceValue)
	}

	byRule := r.Frequency.ByRule()
	for _, kv := range pending {
		if byRule != "" && kv[0] == byRule && r.ByValues == nil {
			r.ByValues = strings.Split(kv[1], ",")
			continue
		}
		r.extra = append(r.extra, kv[0]+"="+kv[1])
	}
	return nil
}

// parseICalTime reads a DATE or DATE-TIME value. params is the text after
// the property name, e.g. "VALUE=DATE" or "TZID=Europe/Berlin".
func parseICalTime(value, params string) (time.Time, bool, error) {
	loc := time.UTC
	for _, p := range strings.Split(params, ";") {
		k, v, _ := strings.Cut(p, "=")
		if strings.EqualFold(k, "TZID") {
			l, err := time.LoadLocation(strings.Trim(v, `"`))
			if err != nil {
				return time.Time{}, false, fmt.Errorf("%w: unknown TZID %q", ErrRecurrenceValue, v)
			}
			loc = l
		}
	}

	value = strings.TrimSpace(value)
	var (
		t   time.Time
		err error
	)
	allDay := false
	switch {
	case len(value) == len(icalDateFormat):
		t, err = time.ParseInLocation(icalDateFormat, value, loc)
		allDay = true
	case strings.HasSuffix(value, "Z"):
		t, err = time.Parse(icalDateTimeFormat, value)
	default:
		t, err = time.ParseInLocation(icalLocalFormat, value, loc)
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: invalid time %q", ErrRecurrenceValue, value)
	}
	return t, allDay, nil
}

// RRule builds the equivalent rrule-go rule for expansion. Parts kept in
// extra, such as COUNT or BYMONTHDAY, take part in the expansion.
func (r *Recurrence) RRule() (*rrule.RRule, error) {
	if _, ok := frequencyNames[r.Frequency]; !ok {
		return nil, fmt.Errorf("%w: frequency is required", ErrRecurrenceValue)
	}
	if err := validateByValues(r.Frequency, r.ByValues); err != nil {
		return nil, err
	}

	opt, err := rrule.StrToROption(strings.ToUpper(strings.Join(r.ruleParts(), ";")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecurrenceValue, err)
	}
	opt.Dtstart = r.Start
	opt.Interval = max(opt.Interval, 1)
	if !r.RepeatUntil.IsZero() {
		y, m, d := r.RepeatUntil.Date()
		opt.Until = time.Date(y, m, d, 23, 59, 59, 0, r.Start.Location())
	}

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecurrenceValue, err)
	}
	return rule, nil
}

// Occurrences returns the start times of every occurrence between after and
// before, inclusive.
func (r *Recurrence) Occurrences(after, before time.Time) ([]time.Time, error) {
	rule, err := r.RRule()
	if err != nil {
		return nil, err
	}
	times := rule.Between(after, before, true)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

func validateByValues(freq Frequency, values []string) error {
	rule := freq.ByRule()
	if rule == "" {
		if len(values) > 0 {
			return fmt.Errorf("%w: %s takes no by-values", ErrRecurrenceValue, freq)
		}
		return nil
	}

	for _, v := range values {
		if rule == "BYDAY" {
			if _, err := parseWeekday(v); err != nil {
				return err
			}
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s value %q is not a number", ErrRecurrenceValue, rule, v)
		}
		lo, hi := byRuleRange(rule)
		if n < lo || n > hi || (rule == "BYYEARDAY" && n == 0) {
			return fmt.Errorf("%w: %s value %d out of range", ErrRecurrenceValue, rule, n)
		}
	}
	return nil
}

func byRuleRange(rule string) (int, int) {
	switch rule {
	case "BYSECOND":
		return 0, 59
	case "BYMINUTE":
		return 0, 59
	case "BYHOUR":
		return 0, 23
	default:
		return -366, 366
	}
}

// parseWeekday reads BYDAY values such as "TU", "2MO" or "-1FR".
func parseWeekday(value string) (rrule.Weekday, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if len(v) < 2 {
		return rrule.Weekday{}, fmt.Errorf("%w: invalid weekday %q", ErrRecurrenceValue, value)
	}

	day, ok := weekdays[v[len(v)-2:]]
	if !ok {
		return rrule.Weekday{}, fmt.Errorf("%w: invalid weekday %q", ErrRecurrenceValue, value)
	}
	if prefix := v[:len(v)-2]; prefix != "" {
		n, err := strconv.Atoi(prefix)
		if err != nil || n == 0 || n < -53 || n > 53 {
			return rrule.Weekday{}, fmt.Errorf("%w: invalid weekday ordinal %q", ErrRecurrenceValue, value)
		}
		return day.Nth(n), nil
	}
	return day, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
