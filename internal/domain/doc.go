// Package domain models sensor readings reported by in-vehicle Raspberry Pi
// units and the queries the dashboard runs over them.
//
// # Reading conventions
//
// Timestamps are reported as "YYYY-MM-DD HH:MM:SS" strings, local to the
// reporting device. They are stored verbatim: the shape is not validated at
// ingestion, and a malformed timestamp only degrades date/hour queries for
// that one reading (it matches no date prefix, or counts into no hour bucket).
//
// Values are stored as raw JSON so devices may report numbers or strings
// without the server caring. A value of 0, "", or null is a present value;
// only a missing field is rejected.
//
// Coordinates come from the unit's GPS. When the fix is missing or the field
// is unparsable, latitude and longitude are nil and serialize as JSON null.
// A parsed 0 is kept as 0 so an unknown position is never conflated with the
// equator or prime meridian.
//
// Device identifiers (ip, mac) default to "Unknown" when the reporter could
// not determine them.
//
// # Query conventions
//
// The date list returns each distinct calendar-date prefix (the portion of
// the timestamp before the space) once, in first-seen order. The hourly
// histogram buckets a single date's readings into 24 counts by the hour
// component of the time portion.
package domain
