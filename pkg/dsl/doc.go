/*
Package dsl provides a fluent Go builder for flow definitions.

It lets flows be declared in code with type checking and IDE completion, and resolves every
transition target when the flow is built, so an unresolved flow never reaches an execution.

Example usage:

	flow, err := dsl.New("checkout").
		Global("cancel", "cancelled").
		View("cart").On("next", "pay").Builder().
		Action("pay", chargeCard).On("success", "done").Catch("declined", domain.MatchSentinel(ErrDeclined), "cart").Builder().
		End("done").Render("thanks").Builder().
		End("cancelled").Builder().
		Build()
*/
package dsl
