// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package consts

const MetricsNamespace = "statgraph"

// Label names shared by every metric exported from the context graph.
const (
	LabelOwner     = "owner"
	LabelStatistic = "statistic"
	LabelNode      = "node"
	LabelType      = "type"
	LabelRow       = "row"
	LabelColumn    = "column"
)
