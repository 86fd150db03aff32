package offscreen

import _ "embed"

// TriangleWGSL draws one triangle from the vertex index alone.
//
//go:embed shaders/triangle.wgsl
var TriangleWGSL string

// ViewTriangleWGSL is TriangleWGSL placed by a view transform and tinted,
// both read from a uniform block at group 0, binding 0.
//
//go:embed shaders/view_triangle.wgsl
var ViewTriangleWGSL string
