// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// Error is the Go error
	Error = "error"

	// Node is the identifier of a context graph node
	Node = "node"

	// Parent is the identifier of the parent side of a graph edge
	Parent = "parent"

	Query = "query"

	Statistic = "statistic"

	Window = "window"
)
