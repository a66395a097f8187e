package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// Maximum sample images kept per attribute value
	MAX_SAMPLE_IMAGES = 4

	// Maximum tokens enumerated per contract-level recalculation pass
	MAX_CONTRACT_RECALC_TOKENS = 10000
)
