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

package platform

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// clockTicksPerSec is _SC_CLK_TCK, which on every Linux/x86 target this
// library supports is fixed at 100; parseStat converts clock-tick fields
// to nanosecond durations using it.
const clockTicksPerSec = 100

// statFields indexes the space-separated fields of /proc/<pid>/stat that
// parseStat extracts, numbered the way libsandbox/src/platform.c's
// proc_probe switch is, after the parenthesized comm field has been
// stripped out.
const (
	fPid = iota
	fComm
	fState
	fPpid
	fPgrp
	fSession
	fTTYNr
	fTPGid
	fFlags
	fMinFlt
	fCMinFlt
	fMajFlt
	fCMajFlt
	fUTime
	fSTime
	fCUTime
	fCSTime
	fPriority
	fNice
	fNumThreads
	fItrealvalue
	fStartTime
	fVSize
	fRSS
	fRSSLim
	fStartCode
	fEndCode
	fStartStack
)

// parseStat parses the content of /proc/<pid>/stat into a Snapshot's STAT
// fields. It tolerates whitespace inside the parenthesized comm field by
// locating the last ')' rather than splitting naively on spaces, matching
// the original parser's strategy of skipping past the command field before
// doing a positional strsep walk.
func parseStat(content string, snap *Snapshot) error {
	open := strings.IndexByte(content, '(')
	close := strings.LastIndexByte(content, ')')
	if open < 0 || close < 0 || close < open {
		return fmt.Errorf("%w: missing comm parens", ErrParse)
	}

	pidField := strings.TrimSpace(content[:open])
	pid, err := strconv.Atoi(pidField)
	if err != nil {
		return fmt.Errorf("%w: pid field: %v", ErrParse, err)
	}

	rest := strings.Fields(content[close+1:])
	// rest[0] is State; everything else shifts down by fState relative
	// to the numbered table above (fPid and fComm are consumed already).
	get := func(idx int) (string, error) {
		i := idx - fState
		if i < 0 || i >= len(rest) {
			return "", fmt.Errorf("%w: field %d missing", ErrParse, idx)
		}
		return rest[i], nil
	}

	snap.Pid = pid

	if v, err := get(fState); err != nil {
		return err
	} else if len(v) != 1 {
		return fmt.Errorf("%w: state field malformed %q", ErrParse, v)
	} else {
		snap.State = v[0]
	}

	intField := func(idx int) (uint64, error) {
		v, err := get(idx)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %d: %v", ErrParse, idx, err)
		}
		return n, nil
	}

	ppid, err := intField(fPpid)
	if err != nil {
		return err
	}
	snap.Ppid = int(ppid)

	if flags, err := intField(fFlags); err != nil {
		return err
	} else {
		snap.Flags = uint32(flags)
	}

	if v, err := intField(fMinFlt); err != nil {
		return err
	} else {
		snap.MinFlt = v
	}
	if v, err := intField(fMajFlt); err != nil {
		return err
	} else {
		snap.MajFlt = v
	}

	uticks, err := intField(fUTime)
	if err != nil {
		return err
	}
	sticks, err := intField(fSTime)
	if err != nil {
		return err
	}
	snap.UTime = ticksToDuration(uticks)
	snap.STime = ticksToDuration(sticks)

	if v, err := intField(fVSize); err != nil {
		return err
	} else {
		snap.VSize = v
	}
	if v, err := intField(fRSS); err != nil {
		return err
	} else {
		// RSS is reported in pages in /proc/<pid>/stat; the page size is
		// assumed 4096, the universal value on x86/x86_64.
		snap.RSS = v * 4096
	}
	if v, err := intField(fStartCode); err != nil {
		return err
	} else {
		snap.StartCode = v
	}
	if v, err := intField(fEndCode); err != nil {
		return err
	} else {
		snap.EndCode = v
	}
	if v, err := intField(fStartStack); err != nil {
		return err
	} else {
		snap.StartStack = v
	}

	return nil
}

func ticksToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks) * time.Second / clockTicksPerSec
}
