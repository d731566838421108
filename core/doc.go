// Package core provides the value model shared by every layer of EmbedDB.
//
// The package defines the SQL type tags, typed values and rows, the
// conversion and promotion rules between types, table and column
// definitions, and the single error type the engine reports.
//
// # Values
//
// A Value is an immutable typed datum. NULL is a Value too and keeps the
// type of the slot it came from:
//
//	v := core.NewInteger(42)
//	n := core.Null(core.VarCharType)
//	d, err := core.Convert(core.NewVarChar("23.5"), core.DecimalType)
//
// # Column Types
//
// Numeric types widen INTEGER -> BIGINT -> DECIMAL -> DOUBLE when mixed.
// VARCHAR_IGNORECASE compares case-insensitively; every other string type
// compares exactly. OBJECT columns hold opaque serialized blobs.
//
// # Errors
//
// Every user-facing failure is a *core.Error whose text has the shape
// "<code> <message>". Match by kind with errors.Is:
//
//	if errors.Is(err, core.ErrConstraint) {
//	    // NOT NULL, key or type violation
//	}
package core
