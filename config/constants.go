package config

const (
	// PercentPrecision is the number of fractional digits in ownership
	// percentages.
	PercentPrecision = 6

	// PercentScale is 10^PercentPrecision; percentages are computed as
	// floor(balance * 100 * PercentScale / totalSupply).
	PercentScale uint64 = 1_000_000
)
