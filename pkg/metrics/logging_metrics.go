// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import "github.com/prometheus/client_golang/prometheus"

const loggingSubsystem = "logging"

// 异步日志写入相关指标，只有开启 log.async-write-enable 时才会变化。
var (
	LoggingPendingWriteLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: nimlNamespace,
		Subsystem: loggingSubsystem,
		Name:      "pending_write_length",
		Help:      "异步日志队列中待写入的条数",
	})

	LoggingPendingWriteBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: nimlNamespace,
		Subsystem: loggingSubsystem,
		Name:      "pending_write_bytes",
		Help:      "异步日志队列中待写入的字节数",
	})

	LoggingTruncatedWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: nimlNamespace,
		Subsystem: loggingSubsystem,
		Name:      "truncated_writes_total",
		Help:      "超过单条最大字节数而被截断的日志条数",
	})

	LoggingDroppedWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: nimlNamespace,
		Subsystem: loggingSubsystem,
		Name:      "dropped_writes_total",
		Help:      "队列已满或写入超时而被丢弃的日志条数",
	})

	LoggingIOFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: nimlNamespace,
		Subsystem: loggingSubsystem,
		Name:      "io_failures_total",
		Help:      "写入日志输出失败的次数",
	})
)

func registerLogging(r prometheus.Registerer) {
	r.MustRegister(LoggingPendingWriteLength)
	r.MustRegister(LoggingPendingWriteBytes)
	r.MustRegister(LoggingTruncatedWrites)
	r.MustRegister(LoggingDroppedWrites)
	r.MustRegister(LoggingIOFailure)
}
