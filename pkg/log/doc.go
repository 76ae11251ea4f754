// Package log provides the process-wide structured logging sink used by
// every component in this module, built on zerolog. It owns formatting and
// output only; the single-writer, drop-counting drain discipline the
// server requires sits in front of it, in pkg/logqueue.
package log
