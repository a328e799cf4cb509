// Package listener selects the ordered listener set of a flow execution.
package listener
