package main

import (
	"fmt"
	"io"

	"github.com/ust-cache/ust-cache/internal/version"
)

// printVersion 输出注入的版本 + 提交信息。
func printVersion(w io.Writer) {
	fmt.Fprintln(w, version.Full())
}
