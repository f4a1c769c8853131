// Package gps configures MediaTek (PMTK) receivers attached to a UART.
//
// A Session sends the update-rate and output-set commands, asks for the
// firmware release, and hands back whatever sentence arrives first. Replies
// are framed but not parsed.
package gps
