// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
	"github.com/gogpu/naga/ir"
)

// dumpConfig renders IR deterministically: no pointer addresses, no
// capacities, sorted map keys.
var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
}

// Dump returns a readable, deterministic text dump of a module.
func Dump(module *ir.Module) string {
	return dumpConfig.Sdump(module)
}

// fingerprint identifies a module revision.
func fingerprint(module *ir.Module) uint64 {
	h := fnv.New64a()
	dumpConfig.Fdump(h, module)
	return h.Sum64()
}
