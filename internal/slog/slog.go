// Copyright 2026 The Ironclad Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package slog wraps a single package-wide *logrus.Logger, giving every
// component a small, consistent leveled-logging surface instead of each
// reaching for logrus directly. Text formatting is the default; SetJSON
// switches every subsequently created Logger to JSON, for the CLI's
// --log-format=json flag.
package slog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.Mutex
	base = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetJSON switches the package-wide formatter between text (the default)
// and JSON.
func SetJSON(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if v {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetLevel sets the minimum level logged package-wide. Accepts the same
// strings as logrus.ParseLevel ("debug", "info", "warning", "error", ...).
func SetLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	base.SetLevel(lv)
	return nil
}

// Logger is a component-scoped view onto the shared logrus.Logger.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger tagged with component, attached as the "component"
// field on every record it emits.
func New(component string) *Logger {
	mu.Lock()
	defer mu.Unlock()
	return &Logger{entry: base.WithField("component", component)}
}

// WithField returns a Logger that additionally carries key=value on every
// record, without mutating the receiver.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields is the multi-key form of WithField.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debugf(format string, args ...interface{})   { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})    { l.entry.Infof(format, args...) }
func (l *Logger) Warningf(format string, args ...interface{}) { l.entry.Warningf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.entry.Errorf(format, args...) }
