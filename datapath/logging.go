/*
 * MIT License
 *
 * Copyright (c) 2025 quicdatapath contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package datapath

import (
	"context"

	golog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

// newDefaultLogger returns a golib logger at InfoLevel writing nowhere in
// particular (stdout, per golib's own default hook) — enough to replace
// the original's raw printf/assert diagnostics (supplemented feature:
// see SPEC_FULL.md, "structured logging") without forcing every embedder
// of this package to configure one.
func newDefaultLogger() golog.Logger {
	return golog.New(context.Background())
}

func logDebug(l golog.Logger, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Debug(msg, nil, args...)
}

func logWarn(l golog.Logger, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Warning(msg, nil, args...)
}

func logError(l golog.Logger, msg string, err error, args ...interface{}) {
	if l == nil {
		return
	}
	var errs []error
	if err != nil {
		errs = []error{err}
	}
	l.LogDetails(loglvl.ErrorLevel, msg, nil, errs, nil, args...)
}
