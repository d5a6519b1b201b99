// Package flows holds the engine's authentication flows as free functions
// over explicit dependency structs. Each Run function returns a result value
// carrying a failure kind instead of a sentinel error; the root package maps
// kinds onto its public error surface. Keeping the flows free of root package
// imports lets them be tested with plain closures.
package flows
