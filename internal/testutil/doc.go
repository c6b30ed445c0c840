// Package testutil contains helpers used across tests to reduce boilerplate:
// a scripted completion backend that replays canned model outputs and records
// the requests it saw, and a fluent transcript builder. They are not intended
// for production usage.
package testutil
