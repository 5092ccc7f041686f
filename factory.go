// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eigenlayer

import (
	"github.com/luxfi/eigenlayer/config"
)

// Factory creates Engine instances bound to a fixed configuration.
type Factory struct {
	Config config.Config
}

// New creates an engine using the factory's configuration. Any config set
// on p is replaced.
func (f *Factory) New(p Params) (*Engine, error) {
	p.Config = f.Config
	return New(p)
}
