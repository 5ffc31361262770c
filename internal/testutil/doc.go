// Package testutil contains in-memory fakes for the audit log and inference
// client shared by package tests. Not intended for production usage.
package testutil
