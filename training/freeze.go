package training

import (
	"github.com/sslstudent/3dprint-image-translation/nn"
)

// SetRequiresGrad flips gradient tracking for every parameter of every
// network in the slice. Nil entries are skipped, and re-applying the same
// flag is a no-op, so callers can toggle freely around each sub-step.
func SetRequiresGrad(nets []nn.Network, requiresGrad bool) {
	for _, net := range nets {
		if net == nil {
			continue
		}
		for _, p := range net.Parameters() {
			if p == nil {
				continue
			}
			p.SetRequiresGrad(requiresGrad)
		}
	}
}

// Freeze disables gradient tracking for a single network's parameters.
func Freeze(net nn.Network) {
	SetRequiresGrad([]nn.Network{net}, false)
}

// Unfreeze enables gradient tracking for a single network's parameters.
func Unfreeze(net nn.Network) {
	SetRequiresGrad([]nn.Network{net}, true)
}
