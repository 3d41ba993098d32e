package types

// Well-known addresses used by the benchmark harness.
var (
	// DeployerAddr is the account every benchmarked contract is deployed from.
	DeployerAddr = AddressFromSeed("deployer")
)
