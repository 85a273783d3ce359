// Package version 提供 niml-dset 工具的构建版本信息。
//
// 构建时可以通过 -ldflags 注入：
//
//	go build -ldflags "-X github.com/lk2023060901/niml-dset-go/pkg/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"

	"github.com/blang/semver/v4"
	"github.com/cockroachdb/errors"
)

// 以下变量在构建时通过 -ldflags 设置。
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Semver 解析 Version。Version 被注入为非法取值时返回错误。
func Semver() (semver.Version, error) {
	v, err := semver.ParseTolerant(Version)
	if err != nil {
		return semver.Version{}, errors.Wrapf(err, "parse version %q", Version)
	}
	return v, nil
}

// Info 返回适合 version 子命令输出的版本字符串。
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Full 在 Info 的基础上附带 Go 版本与平台。
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Compatible 判断当前版本是否落在 rng 描述的范围内，例如 ">=0.2.0 <1.0.0"。
func Compatible(rng string) (bool, error) {
	r, err := semver.ParseRange(rng)
	if err != nil {
		return false, errors.Wrapf(err, "parse range %q", rng)
	}
	v, err := Semver()
	if err != nil {
		return false, err
	}
	return r(v), nil
}
