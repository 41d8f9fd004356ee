// Package common holds the pieces shared by the statsinit library and its
// command-line interface: the run configuration (Config) with its validation
// and human-readable summary, and the logger that formats all output of the
// tool.
//
// Logging is routed through Dragonboat's logger package so that the dKV
// client, which logs through the same facility, ends up in the same format.
package common
