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

package logutils

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/commonnet/openr/internal/metrics"
)

func TestSummarizer_TallyOperationsCountsAcrossIterations(t *testing.T) {
	g := NewWithT(t)

	s := NewSummarizer("test loop")
	s.RecordOperation("kernel-event:route:add")
	s.EndOfIteration(time.Millisecond)
	s.RecordOperation("kernel-event:route:add")
	s.RecordOperation("task")
	s.EndOfIteration(time.Millisecond)

	tally := s.tallyOperations()
	g.Expect(tally).To(Equal(map[string]int{
		"kernel-event:route:add": 2,
		"task":                   1,
	}))
}

func TestSummarizer_DoLogFeedsLoopOperationsTotal(t *testing.T) {
	g := NewWithT(t)

	before := testutil.ToFloat64(metrics.LoopOperationsTotal.WithLabelValues("kernel-event:link:change"))

	s := NewSummarizer("test loop")
	s.RecordOperation("kernel-event:link:change")
	s.EndOfIteration(time.Millisecond)
	s.doLog()

	after := testutil.ToFloat64(metrics.LoopOperationsTotal.WithLabelValues("kernel-event:link:change"))
	g.Expect(after - before).To(Equal(float64(1)))
}
