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
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码，nil 返回 0。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	if specificErr, ok := cause.(dsetError); ok {
		return specificErr.code()
	}
	return errUnexpected.code()
}

// GetErrorType 返回错误的分类；非本包错误一律视为系统错误。
func GetErrorType(err error) ErrorType {
	if merr, ok := errors.Cause(err).(dsetError); ok {
		return merr.errType
	}

	return SystemError
}

// IsInputError 判断错误是否由调用方输入导致。
func IsInputError(err error) bool {
	return err != nil && GetErrorType(err) == InputError
}

// Dataset 相关错误封装。
func WrapErrMissingData(msg ...string) error {
	err := error(ErrMissingData)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrShapeMismatch(what string, got, expected int, msg ...string) error {
	err := wrapFields(ErrShapeMismatch,
		value("field", what),
		value("got", got),
		value("expected", expected),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrLabelCount(what string, got, expected int, msg ...string) error {
	err := wrapFields(ErrLabelCount,
		value("field", what),
		value("got", got),
		value("expected", expected),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrUnsupportedPayload(node string, payload any) error {
	return wrapFields(ErrUnsupportedPayload,
		value("node", node),
		value("payload", fmt.Sprintf("%T", payload)),
	)
}

// Node tree 相关错误封装。
func WrapErrMalformedTree(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrMalformedTree, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// IO 相关错误封装。
// cause 保留在错误链中，errors.Is(err, fs.ErrNotExist) 之类的判断仍然成立。
func WrapErrIoFailed(path string, cause error) error {
	err := wrapFields(ErrIoFailed, value("path", path))
	if cause == nil {
		return err
	}
	return Combine(cause, err)
}

func WrapErrFormat(reason string, msgAndArgs ...any) error {
	err := wrapFieldsWithDesc(ErrFormat, reason)
	if len(msgAndArgs) > 0 {
		msg := msgAndArgs[0].(string)
		err = errors.Wrapf(err, msg, msgAndArgs[1:]...)
	}
	return err
}

func WrapErrUnsupportedForm(form string) error {
	return wrapFields(ErrUnsupportedForm, value("form", form))
}

// Parameter 相关错误封装。
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmt string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmt, args...)
}

func wrapFields(err dsetError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err dsetError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}
