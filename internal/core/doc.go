// Package core provides the business logic behind the case grids.
//
// It is independent of any transport layer: web handlers, the CLI and tests
// drive it the same way.
//
// # Screens
//
// A [Screen] is the host configuration of one grid: its columns, identifier
// field, default sort, page size, data scope and submit mode. Screens are
// registered at init time using [Register] (see package screens).
//
// # Sessions
//
// [Service.OpenSession] builds a grid.Table for a screen, loads it from the
// store and keeps it until it is closed or sits idle longer than the
// configured timeout. Reloads go through a loader.Refresher, so only the
// newest request for a session is ever applied.
//
// # Commits
//
// [Service.Commit] hands the session's pending edits to the store. Screens in
// tx mode persist the whole changeset in one transaction; screens in
// sequential mode update one case at a time through [SequentialSubmit] and
// keep whatever was applied before a failure.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - GRID001-GRID008: Grid errors (unknown column or row, commit in progress, bad filter)
//   - SES001-SES002, SCR001: Session and screen errors
//   - VAL001-VAL005: Cell validation errors and vanished cases
//   - DB001-DB007: Database errors (constraints, connections)
//   - LOAD001-LOAD002, REQ001-REQ002, RATE001: Load and request errors
package core
