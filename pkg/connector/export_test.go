package connector

// DriverAndDSN exposes DSN assembly to the package tests.
func DriverAndDSN(d *Direct) (string, string) { return d.driverAndDSN() }
