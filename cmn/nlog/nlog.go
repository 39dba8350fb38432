// Package nlog is the core's timestamping, call-site-aware logger:
// one severity-leveled, size-rotated log file per process, or stderr
// when no log directory is set. Lines are written unbuffered.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{'I', 'W', 'E'}

// MaxSize is the per-file rotation threshold; tunable before the first write.
var MaxSize int64 = 64 * 1024 * 1024

type logger struct {
	mu      sync.Mutex
	file    *os.File
	written int64
	dir     string
	tag     string
	sev     severity
}

var (
	loggers      [3]*logger
	initOnce     sync.Once
	toStderr     = true // until SetLogDirRole is called
	alsoToStderr bool
	pid          = os.Getpid()
	host, _      = os.Hostname()
	title        = "nlog"
	role         string
)

func initLoggers() {
	for s := sevInfo; s <= sevErr; s++ {
		loggers[s] = &logger{sev: s, tag: sevText(s)}
	}
}

func sevText(s severity) string {
	switch s {
	case sevWarn:
		return "warning"
	case sevErr:
		return "error"
	default:
		return "info"
	}
}

// InitFlags registers -logtostderr/-alsologtostderr the way the teacher's
// CLI tools wire glog-style flags onto a caller-supplied FlagSet.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

// SetTitle names this process in rotated log file names.
func SetTitle(s string) { title = s }

// SetLogDirRole switches logging from stderr to size-rotated files under
// dir, tagging rotated file names with role (e.g. "server"/"client"). An
// empty dir leaves logging on stderr.
func SetLogDirRole(dir, r string) {
	initOnce.Do(initLoggers)
	role = r
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		os.Stderr.WriteString("nlog: " + err.Error() + "\n")
		return
	}
	for s := sevInfo; s <= sevErr; s++ {
		l := loggers[s]
		l.mu.Lock()
		l.dir = dir
		l.mu.Unlock()
	}
	toStderr = false
}

func sname() string {
	if role != "" {
		return title + "." + role
	}
	return title
}

func (l *logger) ensure(now time.Time) error {
	if l.dir == "" {
		return nil // writing to stderr only
	}
	if l.file != nil && l.written < MaxSize {
		return nil
	}
	if l.file != nil {
		l.file.Close()
	}
	name := fmt.Sprintf("%s.%s.%s.%d.log", sname(), l.tag, now.Format("20060102-150405"), pid)
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	l.written = 0
	link := filepath.Join(l.dir, "current."+l.tag)
	os.Remove(link)
	os.Symlink(name, link)
	return nil
}

func caller(depth int) string {
	_, fn, ln, ok := runtime.Caller(depth + 2)
	if !ok {
		return "???"
	}
	if idx := strings.LastIndexByte(fn, '/'); idx >= 0 {
		fn = fn[idx+1:]
	}
	return fn + ":" + strconv.Itoa(ln)
}

func logf(sev severity, depth int, format string, a ...any) {
	initOnce.Do(initLoggers)
	now := time.Now()
	var msg string
	if format == "" {
		msg = fmt.Sprintln(a...)
	} else {
		msg = fmt.Sprintf(format, a...)
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
	}
	line := fmt.Sprintf("%c%s %s %s", sevChar[sev], now.Format("15:04:05.000000"), caller(depth), msg)

	if toStderr || alsoToStderr {
		os.Stderr.WriteString(line)
		if toStderr {
			return
		}
	}

	l := loggers[sev]
	l.mu.Lock()
	if err := l.ensure(now); err == nil && l.file != nil {
		n, _ := l.file.WriteString(line)
		l.written += int64(n)
	} else if !alsoToStderr {
		os.Stderr.WriteString(line)
	}
	l.mu.Unlock()

	if sev >= sevWarn {
		// warnings/errors are also durably visible on the info stream
		li := loggers[sevInfo]
		li.mu.Lock()
		if err := li.ensure(now); err == nil && li.file != nil {
			n, _ := li.file.WriteString(line)
			li.written += int64(n)
		}
		li.mu.Unlock()
	}
}

func Infof(format string, a ...any)    { logf(sevInfo, 0, format, a...) }
func Warningf(format string, a ...any) { logf(sevWarn, 0, format, a...) }
func Errorf(format string, a ...any)   { logf(sevErr, 0, format, a...) }

func Infoln(a ...any)    { logf(sevInfo, 0, "", a...) }
func Warningln(a ...any) { logf(sevWarn, 0, "", a...) }
func Errorln(a ...any)   { logf(sevErr, 0, "", a...) }

func InfoDepth(depth int, a ...any)  { logf(sevInfo, depth, "", a...) }
func ErrorDepth(depth int, a ...any) { logf(sevErr, depth, "", a...) }

// Flush closes and reopens (when rotate is true, forces size check) log
// files. Accepts a trailing bool, matching the teacher's exit-time call
// convention (nlog.Flush(true) on shutdown, nlog.Flush() on the periodic
// housekeeper tick).
func Flush(rotate ...bool) {
	initOnce.Do(initLoggers)
	force := len(rotate) > 0 && rotate[0]
	for s := sevInfo; s <= sevErr; s++ {
		l := loggers[s]
		l.mu.Lock()
		if l.file != nil {
			l.file.Sync()
			if force {
				l.file.Close()
				l.file = nil
			}
		}
		l.mu.Unlock()
	}
}
