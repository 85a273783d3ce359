package dset

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/log"
	"github.com/lk2023060901/niml-dset-go/pkg/metrics"
	"github.com/lk2023060901/niml-dset-go/pkg/util/conc"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
	"github.com/lk2023060901/niml-dset-go/pkg/util/retry"
)

const tracerName = "niml-dset"

// IO 组合编解码器与 Serializer，提供文件级的读写入口。
type IO struct {
	log.Binder

	codec      niml.Codec
	serializer *Serializer
	form       niml.Form
	workers    int
	attempts   uint
}

// IOOption 用于配置 IO。
type IOOption func(*IO)

// WithCodec 指定编解码器。
func WithCodec(c niml.Codec) IOOption {
	return func(io *IO) {
		io.codec = c
	}
}

// WithSerializer 指定 Serializer。
func WithSerializer(s *Serializer) IOOption {
	return func(io *IO) {
		io.serializer = s
	}
}

// WithForm 指定 Save 未显式给出编码形式时使用的默认值。
func WithForm(f niml.Form) IOOption {
	return func(io *IO) {
		io.form = f
	}
}

// WithWorkers 指定 LoadMany/SaveMany 的并发度，<= 0 时使用 CPU 核心数。
func WithWorkers(n int) IOOption {
	return func(io *IO) {
		io.workers = n
	}
}

// WithAttempts 指定单个文件读写遇到 ErrIoFailed 时的最大尝试次数，默认 1（不重试）。
func WithAttempts(n uint) IOOption {
	return func(io *IO) {
		io.attempts = n
	}
}

// NewIO 创建一个 IO。
func NewIO(opts ...IOOption) (*IO, error) {
	io := &IO{}
	for _, opt := range opts {
		opt(io)
	}
	if io.codec == nil {
		c, err := niml.New(niml.Options{})
		if err != nil {
			return nil, err
		}
		io.codec = c
	}
	if io.serializer == nil {
		io.serializer = defaultSerializer()
	}
	if io.form == "" {
		io.form = niml.DefaultForm
	}
	if err := io.form.Validate(); err != nil {
		return nil, err
	}
	if io.workers <= 0 {
		io.workers = runtime.NumCPU()
	}
	if io.attempts == 0 {
		io.attempts = 1
	}
	io.BindComponent(nil, "dset.io")
	return io, nil
}

// Codec 返回 IO 使用的编解码器，用于直接查看原始节点树。
func (io *IO) Codec() niml.Codec {
	return io.codec
}

// Form 返回 Save 的默认编码形式。
func (io *IO) Form() niml.Form {
	return io.form
}

var defaultIO = sync.OnceValues(func() (*IO, error) {
	return NewIO()
})

// Load 使用默认 IO 读取只包含一个数据集的文件。
func Load(path string) (*Dataset, error) {
	io, err := defaultIO()
	if err != nil {
		return nil, err
	}
	return io.Load(context.Background(), path)
}

// LoadAll 使用默认 IO 读取文件中的全部数据集。
func LoadAll(path string) ([]*Dataset, error) {
	io, err := defaultIO()
	if err != nil {
		return nil, err
	}
	return io.LoadAll(context.Background(), path)
}

// Save 使用默认 IO 写出 d，form 为空时使用 binary。
func Save(path string, d *Dataset, form niml.Form) error {
	io, err := defaultIO()
	if err != nil {
		return err
	}
	return io.Save(context.Background(), path, d, form)
}

// Load 读取 path，要求文件中恰好有一个数据集分组，否则返回 ErrFormat。
func (io *IO) Load(ctx context.Context, path string) (d *Dataset, err error) {
	ctx, done := io.begin(ctx, metrics.LoadLabel, path)
	defer func() { done(err) }()

	groups, err := io.read(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(groups) != 1 {
		return nil, merr.WrapErrFormat("expected exactly one dataset group", "path=%s groups=%d", path, len(groups))
	}
	d, err = Deserialize(groups[0])
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	io.observeSize(ctx, metrics.LoadLabel, path)
	return d, nil
}

// LoadAll 读取 path 中的全部数据集分组。
func (io *IO) LoadAll(ctx context.Context, path string) (ds []*Dataset, err error) {
	ctx, done := io.begin(ctx, metrics.LoadAllLabel, path)
	defer func() { done(err) }()

	groups, err := io.read(ctx, path)
	if err != nil {
		return nil, err
	}
	ds, err = DeserializeAll(groups)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	io.observeSize(ctx, metrics.LoadAllLabel, path)
	return ds, nil
}

// Save 序列化 d 并写出到 path，成功后把 d.Filename 设为 path 的文件名。
// form 为空时使用 IO 的默认编码形式。
func (io *IO) Save(ctx context.Context, path string, d *Dataset, form niml.Form) error {
	if err := io.save(ctx, path, d, form); err != nil {
		return err
	}
	d.Filename = filepath.Base(path)
	return nil
}

// save 基于 d 的浅拷贝序列化，不修改 d，可被多个 goroutine 同时调用。
func (io *IO) save(ctx context.Context, path string, d *Dataset, form niml.Form) (err error) {
	ctx, done := io.begin(ctx, metrics.SaveLabel, path)
	defer func() { done(err) }()

	if d == nil {
		return merr.WrapErrMissingData("save " + path)
	}
	if form == "" {
		form = io.form
	}
	cp := *d
	cp.Filename = filepath.Base(path)
	g, err := io.serializer.Serialize(&cp)
	if err != nil {
		return err
	}
	err = retry.Do(ctx, func() error {
		return io.codec.Write(path, []*niml.Group{g}, form)
	}, io.retryOptions()...)
	if err != nil {
		return err
	}
	io.observeSize(ctx, metrics.SaveLabel, path)
	return nil
}

// LoadMany 并发读取多个文件，结果与 paths 顺序一致。
// 任何一个文件失败时返回第一个错误（按 paths 顺序）。
func (io *IO) LoadMany(ctx context.Context, paths []string) ([]*Dataset, error) {
	pool := conc.NewPool[*Dataset](io.workers, conc.WithConcealPanic(true))
	defer pool.Release()

	futures := make([]*conc.Future[*Dataset], 0, len(paths))
	for _, path := range paths {
		path := path
		futures = append(futures, pool.Submit(func() (*Dataset, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return io.Load(ctx, path)
		}))
	}
	if err := conc.AwaitAll(futures...); err != nil {
		return nil, err
	}
	out := make([]*Dataset, len(futures))
	for i, f := range futures {
		out[i] = f.Value()
	}
	return out, nil
}

// SaveItem 是 SaveMany 的一个写出任务。
type SaveItem struct {
	Path    string
	Dataset *Dataset
}

// SaveMany 并发写出多个数据集，返回第一个错误，出错后尚未开始的任务会被取消。
// 多个 item 可以共享同一个 Dataset；全部成功后才按 items 顺序设置 Filename，
// 因此共享的 Dataset 保留最后一个 item 的文件名。
func (io *IO) SaveMany(ctx context.Context, items []SaveItem, form niml.Form) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(io.workers)
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return io.save(gctx, item.Path, item.Dataset, form)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, item := range items {
		item.Dataset.Filename = filepath.Base(item.Path)
	}
	return nil
}

func (io *IO) read(ctx context.Context, path string) ([]*niml.Group, error) {
	var groups []*niml.Group
	err := retry.Do(ctx, func() error {
		var err error
		groups, err = io.codec.Read(path)
		return err
	}, io.retryOptions()...)
	return groups, err
}

// retryOptions 只重试 ErrIoFailed；格式错误、文件不存在与权限不足重试也不会成功。
func (io *IO) retryOptions() []retry.Option {
	return []retry.Option{
		retry.Attempts(io.attempts),
		retry.RetryErr(func(err error) bool {
			return errors.Is(err, merr.ErrIoFailed) &&
				!errors.IsAny(err, fs.ErrNotExist, fs.ErrPermission)
		}),
	}
}

// begin 开启一个 span，并返回在操作结束时记录日志与指标的回调。
func (io *IO) begin(ctx context.Context, op, path string) (context.Context, func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := log.NewIntentContext(ctx, tracerName, op)
	start := time.Now()
	return ctx, func(err error) {
		finish(span, err)
		metrics.DsetOperations.WithLabelValues(op, metrics.Result(err)).Inc()
		metrics.DsetOperationLatency.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))

		logger := io.Logger().With(zap.String("op", op), log.FieldPath(path), zap.Duration("cost", time.Since(start)))
		if err != nil {
			logger.Warn("dataset operation failed", zap.Int32("code", merr.Code(err)), zap.Error(err))
			return
		}
		logger.Debug("dataset operation done")
	}
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (io *IO) observeSize(ctx context.Context, op, path string) {
	st, err := os.Stat(path)
	if err != nil {
		log.Ctx(ctx).RatedDebug(1, "stat dataset file failed", log.FieldPath(path), zap.Error(err))
		return
	}
	metrics.DsetBytes.WithLabelValues(op).Add(float64(st.Size()))
	metrics.DsetFileSize.WithLabelValues(op).Observe(float64(st.Size()))
}
