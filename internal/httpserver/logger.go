// Copyright 2021 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package httpserver

// Logger is the formatted logger accepted by the HTTP server.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// namedLogger prefixes the messages of a server with its name.
type namedLogger struct {
	name   string
	logger Logger
}

func (n namedLogger) prefix(format string) string {
	return n.name + " http server " + format
}

func (n namedLogger) Infof(format string, args ...any) {
	n.logger.Infof(n.prefix(format), args...)
}

func (n namedLogger) Warnf(format string, args ...any) {
	n.logger.Warnf(n.prefix(format), args...)
}

func (n namedLogger) Errorf(format string, args ...any) {
	n.logger.Errorf(n.prefix(format), args...)
}
