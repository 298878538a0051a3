// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/bureau-foundation/sensor-server/lib/topology"
)

var (
	treeRootStyle       = lipgloss.NewStyle().Bold(true)
	treeEnumeratorStyle = lipgloss.NewStyle().Faint(true)
)

// Tree renders the topology as an indented tree for the
// print-topology start-up mode: sockets, their cores and threads with
// every identifier, then the uncore node and any offline processors.
func Tree(root *topology.SystemRoot) string {
	top := tree.Root(treeRootStyle.Render(fmt.Sprintf(
		"system: %d sockets, %d cores, %d processors, %s uncore",
		len(root.Sockets()), root.CoreCount(), len(root.Processors()), root.Class))).
		EnumeratorStyle(treeEnumeratorStyle)

	for _, socket := range root.Sockets() {
		socketNode := tree.Root(fmt.Sprintf("socket %d", socket.SocketID))
		for _, core := range socket.Cores() {
			coreNode := tree.Root(fmt.Sprintf(
				"core %d (hw %d, module %d, tile %d, die %d, die group %d, %s)",
				core.SocketUniqueCoreID, core.CoreID, core.ModuleID, core.TileID,
				core.DieID, core.DieGroupID, core.Kind))
			for _, thread := range core.Threads() {
				coreNode.Child(fmt.Sprintf("thread %d: os id %d", thread.ThreadID, thread.OSID))
			}
			socketNode.Child(coreNode)
		}
		kind := "client uncore"
		if _, server := socket.Uncore().(*topology.ServerUncore); server {
			kind = "server uncore"
		}
		socketNode.Child(kind)
		top.Child(socketNode)
	}

	if offline := root.Offline(); len(offline) > 0 {
		offlineNode := tree.Root("offline")
		for _, processor := range offline {
			offlineNode.Child(fmt.Sprintf("os id %d", processor.OSID))
		}
		top.Child(offlineNode)
	}
	return top.String()
}
