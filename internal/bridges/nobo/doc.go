// Package nobo implements the Nobø Ecohub bridge for the heating core.
//
// The Ecohub speaks a small line protocol over TCP: every line is a
// space-delimited record whose first token (the prefix) says what the
// record is. This package holds the device model for that protocol (the
// codecs for zones, components, week profiles, override plans and the hub
// itself), an id-indexed Register per entity kind, and the week profile
// evaluator that answers "which mode is active right now".
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐
//	│  Heating Core   │   MQTT   │   Nobø Bridge   │   TCP 27779
//	│   (consumers)   │◄────────►│   (this pkg)    │◄────────────► Ecohub
//	└─────────────────┘          └─────────────────┘
//
// # Wire Format
//
// Lines are ASCII, separated on single spaces. Names that contain spaces
// are sent with U+00A0 (no-break space) so the name stays one token:
//
//	H01 1 1. etage 20 22 16 1 -1
//	H02 186170024143 0 Kontor 0 1 -1 -1
//	H03 2 Off 00004,00003,00004,00004,00004,00004,00003
//	H04 4 0 0 -1 -1 0 -1
//
// Every entity can be regenerated with CommandString(prefix), which is how
// update commands (U00, U01, U02, U03, A03) are built.
//
// Example:
//
//	zone, err := nobo.ParseZone(line)
//	if err != nil {
//	    return err
//	}
//	cmd := zone.WithComfortTemperature(21).CommandString(nobo.PrefixUpdateZone)
//
// # Week Profiles
//
// A week profile is a flat list of HHMMs transition points. Day boundaries
// are found at parse time: a point at 00:00 after any point of the current
// day starts the next day. Exactly 7 days with 1 to 8 points each are
// required.
//
// # Thread Safety
//
// Codecs are pure functions and entities are immutable values. Register is
// a plain map and is not safe for concurrent use; State wraps all registers
// behind a mutex. Client, Bridge, HealthReporter and Scheduler are safe for
// concurrent use.
package nobo
