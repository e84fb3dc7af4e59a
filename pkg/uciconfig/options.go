package uciconfig

// RenderOptions controls how trees are written as UCI text.
type RenderOptions struct {
	IncludePackageLine bool   // Emit a leading "package <name>" line, as `uci export` does
	GenerationTag      string // Optional tag written as a comment at the top of each package
	IncludeAuxiliary   bool   // Whether to include auxiliary files in output
}

// ParseOptions controls how UCI text is read.
type ParseOptions struct {
	BestEffort bool // Skip packages that fail to parse instead of failing the whole bundle
}
