package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// TransferFunction maps scalar values to colour. It is immutable for the
// duration of a render call.
type TransferFunction struct {
	Primary  *ColourMap
	Negative *ColourMap

	// Raw value -> lookup table coordinate.
	DomainScale  float32
	DomainOffset float32

	// Inclusive clipping range in raw value units.
	ClipLow  float32
	ClipHigh float32

	UseNegative    bool
	InvertClipping bool
	DiscardClipped bool

	// Used in place of the table colour for clipped samples that are kept.
	FlatColour mgl32.Vec4
}

// Sample classifies v and returns its colour. discard means the sample must
// not contribute at all; clipped means v fell outside the clipping range
// (after inversion), in which case colour is FlatColour unless discarded.
func (tf *TransferFunction) Sample(v float32) (colour mgl32.Vec4, clipped, discard bool) {
	if math32.IsNaN(v) {
		return mgl32.Vec4{}, true, true
	}

	table := tf.Primary
	if tf.UseNegative && v < 0 {
		v = -v
		if tf.Negative != nil {
			table = tf.Negative
		}
	}

	clipped = !(v >= tf.ClipLow && v <= tf.ClipHigh)
	if tf.InvertClipping {
		clipped = !clipped
	}
	if clipped && tf.DiscardClipped {
		return mgl32.Vec4{}, true, true
	}
	if clipped {
		return tf.FlatColour, true, false
	}
	if table == nil {
		return mgl32.Vec4{}, false, false
	}
	return table.Lookup(v*tf.DomainScale + tf.DomainOffset), false, false
}

// TransferOptions is the user-facing description of a transfer function.
type TransferOptions struct {
	Cmap         *ColourMap
	NegativeCmap *ColourMap

	// Display range mapped onto the full colour map.
	DisplayLow  float32
	DisplayHigh float32

	ClipLow  float32
	ClipHigh float32

	Invert         bool
	UseNegative    bool
	InvertClipping bool
	DiscardClipped bool
	LinearAlpha    bool
	FlatColour     mgl32.Vec4
}

// NewTransferFunction derives the lookup domain transform from the display
// range. An empty display range maps everything to the low end of the table.
func NewTransferFunction(o TransferOptions) *TransferFunction {
	tf := &TransferFunction{
		Primary:        o.Cmap,
		Negative:       o.NegativeCmap,
		ClipLow:        o.ClipLow,
		ClipHigh:       o.ClipHigh,
		UseNegative:    o.UseNegative,
		InvertClipping: o.InvertClipping,
		DiscardClipped: o.DiscardClipped,
		FlatColour:     o.FlatColour,
	}
	if tf.Primary == nil {
		tf.Primary, _ = BuiltinColourMap("greyscale")
	}
	if o.Invert {
		tf.Primary = tf.Primary.Inverted()
		if tf.Negative != nil {
			tf.Negative = tf.Negative.Inverted()
		}
	}
	if o.LinearAlpha {
		tf.Primary = tf.Primary.WithLinearAlpha()
		if tf.Negative != nil {
			tf.Negative = tf.Negative.WithLinearAlpha()
		}
	}

	span := o.DisplayHigh - o.DisplayLow
	if span == 0 {
		tf.DomainScale = 0
		tf.DomainOffset = 0
	} else {
		tf.DomainScale = 1 / span
		tf.DomainOffset = -o.DisplayLow / span
	}
	return tf
}
