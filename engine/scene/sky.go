package scene

type SolidSky struct {
	RGB [3]float32 `json:"rgb"`
}

type VerticalGradientSky struct {
	Factor float32    `json:"factor"`
	Top    [3]float32 `json:"top"`
	Bottom [3]float32 `json:"bottom"`
}

// Sky is a tagged union of miss-shader environment models. A scene with no
// sky at all renders misses as black.
type Sky struct {
	Solid            *SolidSky            `json:"solid,omitempty"`
	VerticalGradient *VerticalGradientSky `json:"vertical_gradient,omitempty"`
}
