package log

import "go.uber.org/atomic"

var _ WithLogger = &Binder{}

// WithLogger 由持有独立 Logger 的组件实现。
type WithLogger interface {
	Logger() *MLogger
}

// Binder 嵌入到需要独立 Logger 的组件中，例如 dset.IO。
// 零值可直接使用，未绑定时退回全局 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// SetLogger 绑定 Logger，传入 nil 时恢复为全局 Logger。
func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

// BindComponent 以 base 为基础绑定一个带 component 字段的 Logger。
// base 为 nil 时使用全局 Logger。
func (b *Binder) BindComponent(base *MLogger, component string) {
	if base == nil {
		base = With()
	}
	b.SetLogger(base.With(FieldComponent(component)))
}

func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return With()
}
