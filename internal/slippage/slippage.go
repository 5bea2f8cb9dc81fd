package slippage

// Bps is how far received fell short of expected, in basis points of expected.
// It is negative when the venue paid out more than quoted.
func Bps(expected, received float64) float64 {
	if expected <= 0 {
		return 0
	}
	return (expected - received) / expected * 10000.0
}
