// Package tools provides the built-in filesystem tools.
package tools

import "github.com/user/toolchat/internal/runtime"

// Builtin returns the default tool set in advertisement order.
func Builtin() []*runtime.Tool {
	return []*runtime.Tool{NewFileRead(), NewFileList(), NewFileWrite()}
}
