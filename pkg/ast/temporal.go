package ast

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Precision is the finest component present in a temporal value.
type Precision int

const (
	PrecisionYear Precision = iota
	PrecisionMonth
	PrecisionDay
	PrecisionHour
	PrecisionMinute
	PrecisionSecond
	PrecisionMillisecond
)

var precisionNames = [...]string{"year", "month", "day", "hour", "minute", "second", "millisecond"}

func (p Precision) String() string {
	if p >= 0 && int(p) < len(precisionNames) {
		return precisionNames[p]
	}
	return "precision(" + strconv.Itoa(int(p)) + ")"
}

// Temporal describes a date, dateTime or time literal as a closed range of
// sortable keys. Keys have the fixed shape "YYYY-MM-DDThh:mm:ss.fff" (or
// "hh:mm:ss.fff" for times) so that range comparisons are plain text
// comparisons. Month ranges end on day 31 whatever the month length; the
// key orders correctly against every real date.
//
// Time zone offsets are accepted and discarded.
type Temporal struct {
	Kind      LiteralKind
	Precision Precision
	Start     string
	End       string
	Partial   bool
}

// FullPrecision returns the precision at which a value of kind denotes a
// single point rather than a range.
func FullPrecision(kind LiteralKind) Precision {
	if kind == LiteralDate {
		return PrecisionDay
	}
	return PrecisionSecond
}

// ErrMalformedTemporal is returned by ParseTemporal.
var ErrMalformedTemporal = errors.New("malformed temporal literal")

var (
	dateRe = regexp.MustCompile(`^(\d{4})(?:-(\d{2})(?:-(\d{2}))?)?$`)
	timeRe = regexp.MustCompile(`^(\d{2})(?::(\d{2})(?::(\d{2})(?:\.(\d+))?)?)?$`)
	zoneRe = regexp.MustCompile(`(Z|[+-]\d{2}:\d{2})$`)
)

// ParseTemporal parses the text of a temporal literal (without the leading
// @) and computes its precision and range. A value with a "T" separator is
// a dateTime, a value starting with "T" is a time.
func ParseTemporal(kind LiteralKind, text string) (*Temporal, error) {
	if !kind.IsTemporal() {
		return nil, fmt.Errorf("%w: %s is not a temporal kind", ErrMalformedTemporal, kind)
	}
	if kind == LiteralTime {
		return parseTime(strings.TrimPrefix(text, "T"), text)
	}

	datePart, timePart, hasT := strings.Cut(text, "T")
	if kind == LiteralDate && hasT {
		return nil, fmt.Errorf("%w: date %q carries a time component", ErrMalformedTemporal, text)
	}
	m := dateRe.FindStringSubmatch(datePart)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedTemporal, text)
	}
	year, _ := strconv.Atoi(m[1])
	month, day := 1, 1
	prec := PrecisionYear
	if m[2] != "" {
		month, _ = strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return nil, fmt.Errorf("%w: month %d out of range in %q", ErrMalformedTemporal, month, text)
		}
		prec = PrecisionMonth
	}
	if m[3] != "" {
		day, _ = strconv.Atoi(m[3])
		last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if day < 1 || day > last {
			return nil, fmt.Errorf("%w: day %d out of range in %q", ErrMalformedTemporal, day, text)
		}
		prec = PrecisionDay
	}

	t := &Temporal{Kind: kind, Precision: prec}
	dateStart := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	switch prec {
	case PrecisionYear:
		t.Start = dateStart + "T00:00:00.000"
		t.End = fmt.Sprintf("%04d-12-31T23:59:59.999", year)
	case PrecisionMonth:
		t.Start = dateStart + "T00:00:00.000"
		t.End = fmt.Sprintf("%04d-%02d-31T23:59:59.999", year, month)
	default:
		t.Start = dateStart + "T00:00:00.000"
		t.End = dateStart + "T23:59:59.999"
	}

	if hasT && timePart != "" {
		if prec != PrecisionDay {
			return nil, fmt.Errorf("%w: time component on partial date %q", ErrMalformedTemporal, text)
		}
		clock, err := parseTime(zoneRe.ReplaceAllString(timePart, ""), text)
		if err != nil {
			return nil, err
		}
		t.Precision = clock.Precision
		t.Start = dateStart + "T" + clock.Start
		t.End = dateStart + "T" + clock.End
	}
	t.Partial = t.Precision < FullPrecision(kind)
	return t, nil
}

func parseTime(clock, text string) (*Temporal, error) {
	m := timeRe.FindStringSubmatch(clock)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedTemporal, text)
	}
	hour, _ := strconv.Atoi(m[1])
	if hour > 23 {
		return nil, fmt.Errorf("%w: hour %d out of range in %q", ErrMalformedTemporal, hour, text)
	}
	t := &Temporal{Kind: LiteralTime, Precision: PrecisionHour}
	minute, second := 0, 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
		if minute > 59 {
			return nil, fmt.Errorf("%w: minute %d out of range in %q", ErrMalformedTemporal, minute, text)
		}
		t.Precision = PrecisionMinute
	}
	if m[3] != "" {
		second, _ = strconv.Atoi(m[3])
		if second > 59 {
			return nil, fmt.Errorf("%w: second %d out of range in %q", ErrMalformedTemporal, second, text)
		}
		t.Precision = PrecisionSecond
	}

	switch t.Precision {
	case PrecisionHour:
		t.Start = fmt.Sprintf("%02d:00:00.000", hour)
		t.End = fmt.Sprintf("%02d:59:59.999", hour)
	case PrecisionMinute:
		t.Start = fmt.Sprintf("%02d:%02d:00.000", hour, minute)
		t.End = fmt.Sprintf("%02d:%02d:59.999", hour, minute)
	default:
		t.Start = fmt.Sprintf("%02d:%02d:%02d.000", hour, minute, second)
		t.End = fmt.Sprintf("%02d:%02d:%02d.999", hour, minute, second)
	}
	if m[4] != "" {
		ms := (m[4] + "00")[:3]
		t.Precision = PrecisionMillisecond
		t.Start = fmt.Sprintf("%02d:%02d:%02d.%s", hour, minute, second, ms)
		t.End = t.Start
	}
	t.Partial = t.Precision < PrecisionSecond
	return t, nil
}
