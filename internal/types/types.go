// README: Common identifier and money value objects used across modules.
package types

// ID is the opaque numeric identifier for rides, users, vehicles, and cities.
type ID int64

type Money struct {
	Amount   int64 // minor units (cents)
	Currency string
}
