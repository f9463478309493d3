package shaders

import (
	_ "embed"
)

// RaymarchWGSLTemplate is a text/template producing one ray-march compute
// program per specialisation.
//
//go:embed raymarch.wgsl.tmpl
var RaymarchWGSLTemplate string

//go:embed fullscreen.wgsl
var FullscreenWGSL string
