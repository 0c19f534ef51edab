// Copyright (c) 2024 Tigera, Inc. All rights reserved.
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

// Package logutils provides a periodic summarizer for the core event loop's
// per-iteration work, so that a chatty loop logs one digest line a minute
// instead of one line per task. Beyond the digest line, it tallies
// iterations by operation name (agent.go's "kernel-event:<category>:<action>"
// and "task" conventions) and feeds the tally into
// internal/metrics.LoopOperationsTotal, giving the core loop's own
// bookkeeping a queryable time series rather than just a log line.
package logutils

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/commonnet/openr/internal/metrics"
)

// OpRecorder lets an iteration describe what it did without the core loop
// depending on the concrete Summarizer type.
type OpRecorder interface {
	RecordOperation(name string)
}

type iteration struct {
	Operations []string
	Duration   time.Duration
}

func (i *iteration) RecordOperation(name string) {
	i.Operations = append(i.Operations, name)
}

// Summarizer batches core-loop iterations and logs a digest no more than
// once a minute (or every iteration at debug level).
type Summarizer struct {
	lock        sync.Mutex
	lastLogTime time.Time

	currentIteration *iteration
	iterations       []*iteration
	loopName         string
}

var _ OpRecorder = (*Summarizer)(nil)

func NewSummarizer(loopName string) *Summarizer {
	return &Summarizer{
		currentIteration: &iteration{},
		lastLogTime:      time.Now(),
		loopName:         loopName,
	}
}

func (l *Summarizer) RecordOperation(name string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.currentIteration.RecordOperation(name)
}

// EndOfIteration closes out the current iteration and, if enough time has
// passed (or debug logging is enabled), logs and resets the digest.
func (l *Summarizer) EndOfIteration(duration time.Duration) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.currentIteration.Duration = duration
	l.iterations = append(l.iterations, l.currentIteration)
	l.currentIteration = &iteration{}
	if time.Since(l.lastLogTime) > time.Minute || logrus.GetLevel() >= logrus.DebugLevel {
		l.doLog()
		l.iterations = l.iterations[:0]
		l.lastLogTime = time.Now()
	}
}

func (l *Summarizer) doLog() {
	numIterations := len(l.iterations)
	var longest *iteration
	var sumOfDurations time.Duration
	for _, it := range l.iterations {
		sumOfDurations += it.Duration
		if longest == nil || it.Duration > longest.Duration {
			longest = it
		}
	}
	if longest == nil {
		return
	}
	avgDuration := (sumOfDurations / time.Duration(numIterations)).Round(time.Millisecond)
	longestOps := append([]string(nil), longest.Operations...)
	sort.Strings(longestOps)

	tally := l.tallyOperations()
	for op, count := range tally {
		metrics.LoopOperationsTotal.WithLabelValues(op).Add(float64(count))
	}

	logrus.Infof("Summarising %d %s over %v: avg=%v longest=%v (%v) ops=%v",
		numIterations, l.loopName, time.Since(l.lastLogTime).Round(100*time.Millisecond), avgDuration,
		longest.Duration.Round(time.Millisecond),
		strings.Join(longestOps, ","), tally)
}

// tallyOperations counts how many times each operation name was recorded
// across the current digest window, keyed by the name as passed to
// RecordOperation (e.g. "kernel-event:route:add", "task").
func (l *Summarizer) tallyOperations() map[string]int {
	counts := make(map[string]int)
	for _, it := range l.iterations {
		for _, op := range it.Operations {
			counts[op]++
		}
	}
	return counts
}
