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
	// awswireNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	awswireNamespace = "awswire"

	protocolLabelName    = "protocol"
	operationLabelName   = "operation"
	outcomeLabelName     = "outcome"
	directionLabelName   = "direction"
	messageTypeLabelName = "message_type"
	eventTypeLabelName   = "event_type"
)

// 调用结果与帧方向的标签取值。
const (
	OutcomeSuccess      = "success"
	OutcomeServiceError = "service_error"
	OutcomeClientError  = "client_error"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

var (
	// buckets 为请求耗时直方图的桶划分，单位为毫秒。
	// 实际桶分布为：
	// [1 2 4 8 16 32 64 128 256 512 1024 2048 4096 8192 16384 32768 65536 1.31072e+05]
	buckets = prometheus.ExponentialBuckets(1, 2, 18)

	// frameSizeBuckets 为事件帧大小的桶划分，单位为字节，上限覆盖 16MB 帧。
	frameSizeBuckets = prometheus.ExponentialBuckets(64, 4, 10)

	MarshalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: awswireNamespace,
			Name:      "marshal_total",
			Help:      "count of marshalled requests",
		}, []string{protocolLabelName, operationLabelName, outcomeLabelName})

	UnmarshalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: awswireNamespace,
			Name:      "unmarshal_total",
			Help:      "count of unmarshalled responses",
		}, []string{protocolLabelName, operationLabelName, outcomeLabelName})

	CallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: awswireNamespace,
			Name:      "call_latency",
			Help:      "latency of a client call in milliseconds",
			Buckets:   buckets,
		}, []string{protocolLabelName, operationLabelName})

	EventFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: awswireNamespace,
			Subsystem: "eventstream",
			Name:      "frames_total",
			Help:      "count of event stream frames",
		}, []string{directionLabelName, messageTypeLabelName})

	EventFrameSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: awswireNamespace,
			Subsystem: "eventstream",
			Name:      "frame_size",
			Help:      "size of event stream frames in bytes",
			Buckets:   frameSizeBuckets,
		}, []string{directionLabelName})

	UnknownEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: awswireNamespace,
			Subsystem: "eventstream",
			Name:      "unknown_events_total",
			Help:      "count of skipped events with an unknown event type",
		}, []string{eventTypeLabelName})

	metricRegisterer prometheus.Registerer
	registerOnce     sync.Once
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(MarshalTotal)
		r.MustRegister(UnmarshalTotal)
		r.MustRegister(CallLatency)
		r.MustRegister(EventFrames)
		r.MustRegister(EventFrameSize)
		r.MustRegister(UnknownEvents)
		metricRegisterer = r
	})
}
