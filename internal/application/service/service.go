// Package service implements the template, generation, numbering, integrity,
// compliance and delivery use cases on top of the ports.
package service

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
