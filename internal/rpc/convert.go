package rpc

import (
	"github.com/saimizi/iviplugind/internal/capability"
	"github.com/saimizi/iviplugind/internal/statecore"
)

func rectToWire(r capability.Rect) rectWire {
	return rectWire{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func surfaceToWire(s statecore.Surface) surfaceWire {
	return surfaceWire{
		ID:          s.ID,
		OrigSize:    sizeWire{Width: s.OrigSize.Width, Height: s.OrigSize.Height},
		SrcRect:     rectToWire(s.SrcRect),
		DestRect:    rectToWire(s.DestRect),
		Visibility:  s.Visible,
		Opacity:     s.Opacity,
		Orientation: s.Orientation.String(),
		ZOrder:      s.ZOrder,
	}
}

func layerToWire(l statecore.Layer) layerWire {
	return layerWire{ID: l.ID, Visibility: l.Visible, Opacity: l.Opacity}
}
