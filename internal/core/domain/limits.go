package domain

// QueryLimits bounds and defaults applied by the recommend and nearby use cases.
type QueryLimits struct {
	DefaultTopN int
	MaxTopN     int

	// ResolveCutoff is the acceptance threshold for approximate identifier matches.
	ResolveCutoff float64

	// WeightOverride replaces the catalog default weights when non-empty.
	WeightOverride []float64

	DefaultRadiusKM float64
	MaxRadiusKM     float64
	DisplayCap      int
}
