// Package offscreen renders a single frame on a GPU without a window and
// writes it to an image file.
//
// # Overview
//
// A run is one unit of work: compile a WGSL shader, open a device, draw
// once into an offscreen texture, copy the texture into a host-readable
// buffer, unpack the padded rows and encode the image. There is no frame
// loop, no input and no surface.
//
// # Quick Start
//
//	import "github.com/gogpu/offscreen"
//
//	res, err := offscreen.Run(ctx, offscreen.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("wrote", res.OutputPath)
//
// For finer control, create a Renderer, render as often as needed, and
// close it:
//
//	r, err := offscreen.NewRenderer(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	img, err := r.Render(ctx)
//
// # Asynchronous completion
//
// Buffer mappings and submissions complete only while the device is polled.
// A Renderer starts a poll loop when it opens the device and stops it in
// Close, so callers never poll by hand.
//
// # Shaders
//
// Shaders go through the shader package: parse, validate, lower. Debug
// artifacts (debug.txt and debug.spv, or debug.glsl, debug.metal or
// debug.hlsl) are written to Config.ArtifactDir. A failure to write an
// artifact is logged and does not fail the run.
//
// # Logging
//
// The package is silent by default. Call SetLogger to receive structured
// logs from every stage.
package offscreen

// Version is the current version of the module.
const Version = "0.1.0"
