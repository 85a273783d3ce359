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

package log

import (
	"context"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/niml-dset-go/pkg/metrics"
)

var _ zapcore.Core = (*asyncTextIOCore)(nil)

// NewAsyncTextIOCore 创建异步写出的 Core：Write 只负责编码并入队，
// 由后台协程经 BufferedWriteSyncer 写到 ws。使用完毕后需要调用 Stop。
func NewAsyncTextIOCore(cfg *Config, ws zapcore.WriteSyncer, enab zapcore.LevelEnabler) *asyncTextIOCore {
	c := *cfg
	c.fillAsyncDefaults()
	nonDroppableLevel, _ := zapcore.ParseLevel(c.AsyncWriteNonDroppableLevel)

	ctx, cancel := context.WithCancel(context.Background())
	w := &asyncWriter{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		bws: &zapcore.BufferedWriteSyncer{
			WS:            ws,
			Size:          c.AsyncWriteBufferSize,
			FlushInterval: c.AsyncWriteFlushInterval,
		},
		pending:             make(chan *entryItem, c.AsyncWritePendingLength),
		writeDroppedTimeout: c.AsyncWriteDroppedTimeout,
		nonDroppableLevel:   nonDroppableLevel,
		stopTimeout:         c.AsyncWriteStopTimeout,
		maxBytesPerLog:      c.AsyncWriteMaxBytesPerLog,
	}
	go w.background()
	return &asyncTextIOCore{
		LevelEnabler: enab,
		enc:          newZapEncoder(&c),
		asyncWriter:  w,
	}
}

// asyncTextIOCore 的各个 With 副本共享同一个 asyncWriter。
type asyncTextIOCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	*asyncWriter
}

type asyncWriter struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	bws                 *zapcore.BufferedWriteSyncer
	pending             chan *entryItem
	writeDroppedTimeout time.Duration
	nonDroppableLevel   zapcore.Level
	stopTimeout         time.Duration
	maxBytesPerLog      int
}

// entryItem 是一条待写出的日志；flushed 非 nil 时表示 Sync 请求。
type entryItem struct {
	buf     *buffer.Buffer
	level   zapcore.Level
	flushed chan struct{}
}

func (s *asyncTextIOCore) With(fields []zapcore.Field) zapcore.Core {
	enc := s.enc.Clone()
	addFields(enc, fields)
	return &asyncTextIOCore{
		LevelEnabler: s.LevelEnabler,
		enc:          enc,
		asyncWriter:  s.asyncWriter,
	}
}

func (s *asyncTextIOCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if s.Enabled(ent.Level) {
		return ce.AddCore(ent, s)
	}
	return ce
}

// Write 编码后入队。低于 nonDroppableLevel 的日志在队列持续已满时被丢弃；
// Stop 之后写入的日志一律丢弃。
func (s *asyncTextIOCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := s.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	length := buf.Len()
	if length == 0 {
		buf.Free()
		return nil
	}

	var dropped <-chan time.Time
	if ent.Level < s.nonDroppableLevel {
		dropped = time.After(s.writeDroppedTimeout)
	}
	select {
	case s.pending <- &entryItem{buf: buf, level: ent.Level}:
		metrics.LoggingPendingWriteLength.Inc()
		metrics.LoggingPendingWriteBytes.Add(float64(length))
	case <-dropped:
		metrics.LoggingDroppedWrites.Inc()
		buf.Free()
	case <-s.ctx.Done():
		metrics.LoggingDroppedWrites.Inc()
		buf.Free()
	}
	return nil
}

// Sync 等待此前入队的日志全部写到底层输出。
func (s *asyncTextIOCore) Sync() error {
	req := &entryItem{flushed: make(chan struct{})}
	select {
	case s.pending <- req:
	case <-s.done:
		return nil
	}
	select {
	case <-req.flushed:
	case <-s.done:
	}
	return nil
}

func (w *asyncWriter) background() {
	defer func() {
		w.flushWithTimeout()
		close(w.done)
	}()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ent := <-w.pending:
			w.consume(ent)
		}
	}
}

func (w *asyncWriter) consume(ent *entryItem) {
	if ent.flushed != nil {
		if err := w.bws.Sync(); err != nil {
			metrics.LoggingIOFailure.Inc()
		}
		close(ent.flushed)
		return
	}
	length := ent.buf.Len()
	metrics.LoggingPendingWriteLength.Dec()
	metrics.LoggingPendingWriteBytes.Sub(float64(length))
	if _, err := w.bws.Write(w.truncate(ent)); err != nil {
		metrics.LoggingIOFailure.Inc()
	}
	ent.buf.Free()
	if ent.level > zapcore.ErrorLevel {
		_ = w.bws.Sync()
	}
}

// truncate 截断超过 maxBytesPerLog 的日志，保留末尾的换行符。
func (w *asyncWriter) truncate(ent *entryItem) []byte {
	writes := ent.buf.Bytes()
	length := len(writes)
	if length <= w.maxBytesPerLog {
		return writes
	}
	metrics.LoggingTruncatedWrites.Inc()
	end := writes[length-1]
	writes = writes[:w.maxBytesPerLog]
	writes[len(writes)-1] = end
	return writes
}

// drain 写出队列中剩余的日志，只在后台协程退出前调用。
func (w *asyncWriter) drain() {
	for {
		select {
		case ent := <-w.pending:
			w.consume(ent)
		default:
			return
		}
	}
}

func (w *asyncWriter) flushWithTimeout() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.drain()
		if err := w.bws.Stop(); err != nil {
			metrics.LoggingIOFailure.Inc()
		}
	}()
	select {
	case <-time.After(w.stopTimeout):
	case <-done:
	}
}

// Stop 停止后台协程，并在 stopTimeout 内尽量写出剩余日志。可重复调用。
func (w *asyncWriter) Stop() {
	w.cancel()
	<-w.done
}
