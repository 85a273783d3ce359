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

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Dataset 相关：序列化输入不合法。
	ErrMissingData        = newDsetError("dataset has no data matrix", 100, InputError)
	ErrShapeMismatch      = newDsetError("shape mismatch", 101, InputError)
	ErrLabelCount         = newDsetError("wrong number of column labels", 102, InputError, withParent(ErrShapeMismatch))
	ErrUnsupportedPayload = newDsetError("unsupported node payload", 103, SystemError)

	// Node tree 相关。
	ErrMalformedTree = newDsetError("malformed node tree", 200, InputError)

	// IO / 编解码相关。
	ErrIoFailed        = newDsetError("IO failed", 300, SystemError)
	ErrFormat          = newDsetError("malformed NIML content", 301, InputError)
	ErrUnsupportedForm = newDsetError("unsupported NIML form", 302, InputError)

	// Parameter related
	ErrParameterInvalid = newDsetError("invalid parameter", 400, InputError)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to dsetError
	errUnexpected = newDsetError("unexpected error", (1<<16)-1, SystemError)
)

type errorOption func(*dsetError)

func WithDetail(detail string) errorOption {
	return func(err *dsetError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *dsetError) {
		err.errType = etype
	}
}

// withParent 让错误在 errors.Is 判断时同时匹配更宽泛的父错误。
func withParent(parent dsetError) errorOption {
	return func(err *dsetError) {
		err.parentCode = parent.errCode
	}
}

type dsetError struct {
	msg        string
	detail     string
	errCode    int32
	parentCode int32
	errType    ErrorType
}

func newDsetError(msg string, code int32, etype ErrorType, options ...errorOption) dsetError {
	err := dsetError{
		msg:     msg,
		detail:  msg,
		errCode: code,
		errType: etype,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e dsetError) code() int32 {
	return e.errCode
}

func (e dsetError) Error() string {
	return e.msg
}

func (e dsetError) Detail() string {
	return e.detail
}

func (e dsetError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(dsetError); ok {
		return e.errCode == cause.errCode || (e.parentCode != 0 && e.parentCode == cause.errCode)
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
