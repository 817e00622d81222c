package logging

import (
	"context"
	"sync"
)

type LoggerFactory interface {
	CreateLogger(ctx context.Context) Logger
}

// LoggerFactoryFunc lets a plain function act as a LoggerFactory.
type LoggerFactoryFunc func(ctx context.Context) Logger

func (f LoggerFactoryFunc) CreateLogger(ctx context.Context) Logger {
	return f(ctx)
}

var (
	loggerFactoryMu sync.RWMutex
	loggerFactory   LoggerFactory
)

// SetLoggerFactory replaces the factory used by NewLogger. Passing nil
// restores the default logrus logger.
func SetLoggerFactory(factory LoggerFactory) {
	loggerFactoryMu.Lock()
	defer loggerFactoryMu.Unlock()

	loggerFactory = factory
}

func GetLoggerFactory() LoggerFactory {
	loggerFactoryMu.RLock()
	defer loggerFactoryMu.RUnlock()

	return loggerFactory
}
