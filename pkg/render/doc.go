// Package render draws a resolved dependency forest as a node-link diagram.
//
// [ToDOT] produces Graphviz DOT source: one box per fetched package,
// solid edges for dependencies that were fetched through their parent and
// dashed edges for dependencies that reuse a package fetched elsewhere in
// the session. [RenderSVG] lays the graph out in-process with
// [github.com/goccy/go-graphviz].
//
//	dot := render.ToDOT(result.Roots, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
package render
