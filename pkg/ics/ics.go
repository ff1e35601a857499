package ics

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// Invite carries the fields stamped into a generated calendar invite.
type Invite struct {
	UID             string
	Faculty         string
	Date            string // YYYY-MM-DD
	Time            string // HH:MM
	DurationMinutes int
	Reason          string
}

// Generator renders iCalendar invites for approved appointments. It is a
// pure transformation: the same invite always yields the same document.
type Generator struct {
	location           string
	productID          string
	defaultDescription string
}

// NewGenerator builds a Generator with the fixed location and product
// identifier stamped into every invite.
func NewGenerator(location, productID, defaultDescription string) *Generator {
	if productID == "" {
		productID = "-//Campus Booking//Appointments//EN"
	}
	if defaultDescription == "" {
		defaultDescription = "No reason provided"
	}
	return &Generator{location: location, productID: productID, defaultDescription: defaultDescription}
}

// Render produces the text/calendar document for the invite. It fails
// when the date or time fields do not parse, and rejects a non-positive
// duration since no end time could be derived from it; callers that
// default the duration never trip the latter. Times are emitted in UTC,
// matching what booking clients already consume.
func (g *Generator) Render(inv Invite) ([]byte, error) {
	start, err := parseStart(inv.Date, inv.Time)
	if err != nil {
		return nil, err
	}
	if inv.DurationMinutes <= 0 {
		return nil, fmt.Errorf("invalid duration: %d", inv.DurationMinutes)
	}
	end := start.Add(time.Duration(inv.DurationMinutes) * time.Minute)

	description := inv.Reason
	if description == "" {
		description = g.defaultDescription
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, inv.UID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, start)
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, end)
	event.Props.SetText(ical.PropSummary, fmt.Sprintf("Appointment with %s", inv.Faculty))
	event.Props.SetText(ical.PropDescription, description)
	event.Props.SetText(ical.PropLocation, g.location)

	organizer := ical.NewProp(ical.PropOrganizer)
	organizer.Params.Set(ical.ParamCommonName, inv.Faculty)
	organizer.Value = inv.Faculty
	event.Props.Set(organizer)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, g.productID)
	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download name for a student's invite.
func Filename(studentName string) string {
	return fmt.Sprintf("%s_appointment.ics", studentName)
}

// parseStart converts "YYYY-MM-DD" and "HH:MM" into a start instant.
// Times are treated as naive wall-clock values; no zone conversion.
func parseStart(date, clock string) (time.Time, error) {
	dateParts := strings.Split(date, "-")
	if len(dateParts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	timeParts := strings.Split(clock, ":")
	if len(timeParts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time %q", clock)
	}

	year, err := strconv.Atoi(dateParts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year %q", dateParts[0])
	}
	month, err := strconv.Atoi(dateParts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q", dateParts[1])
	}
	day, err := strconv.Atoi(dateParts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q", dateParts[2])
	}
	hour, err := strconv.Atoi(timeParts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour %q", timeParts[0])
	}
	minute, err := strconv.Atoi(timeParts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid minute %q", timeParts[1])
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}
