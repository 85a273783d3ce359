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

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// nimlNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	nimlNamespace = "niml"
	dsetSubsystem = "dset"

	opLabelName     = "op"
	resultLabelName = "result"

	SuccessLabel = "ok"
	FailLabel    = "error"

	LoadLabel    = "load"
	LoadAllLabel = "load_all"
	SaveLabel    = "save"
)

var (
	// buckets 为耗时直方图的桶划分，单位为毫秒。
	// [1 2 4 8 16 32 64 128 256 512 1024 2048 4096 8192 16384 32768 65536 1.31072e+05]
	buckets = prometheus.ExponentialBuckets(1, 2, 18)

	// sizeBuckets 为文件大小的桶划分，单位为字节。
	sizeBuckets = []float64{1000, 10000, 100000, 1000000, 10000000, 100000000, 1024000000, 4096000000} // 单位：字节

	DsetOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: nimlNamespace,
			Subsystem: dsetSubsystem,
			Name:      "operations_total",
			Help:      "数据集读写操作次数",
		}, []string{opLabelName, resultLabelName})

	DsetOperationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: nimlNamespace,
			Subsystem: dsetSubsystem,
			Name:      "operation_duration_ms",
			Help:      "数据集读写操作耗时（毫秒）",
			Buckets:   buckets,
		}, []string{opLabelName})

	DsetBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: nimlNamespace,
			Subsystem: dsetSubsystem,
			Name:      "bytes_total",
			Help:      "读写的 NIML 文件总字节数",
		}, []string{opLabelName})

	DsetFileSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: nimlNamespace,
			Subsystem: dsetSubsystem,
			Name:      "file_size_bytes",
			Help:      "单个 NIML 文件的大小分布",
			Buckets:   sizeBuckets,
		}, []string{opLabelName})

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，只有第一次调用生效。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(DsetOperations)
		r.MustRegister(DsetOperationLatency)
		r.MustRegister(DsetBytes)
		r.MustRegister(DsetFileSize)
		registerLogging(r)
		metricRegisterer = r
	})
}

// Result 返回 err 对应的 result 标签值。
func Result(err error) string {
	if err != nil {
		return FailLabel
	}
	return SuccessLabel
}
