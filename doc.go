/*
Package pergola is a continuation-capable flow execution engine for building multi-step,
multi-request interactions such as checkout wizards, onboarding forms and approval chains.

A flow is an immutable graph of states: action states run business logic and emit an
outcome event, view states pause the conversation and hand a view to the caller, sub-flow
states delegate to a nested flow, and end states terminate. Every pause is persisted as a
continuation under a fresh key, so each later request resumes exactly where the previous
one stopped, even if the user navigates back and resubmits an older page.

# Concept

The Executor is the only entry point a transport needs. It resolves flows through a
ports.FlowLocator, stores continuations in a ports.ConversationStore and serializes requests
per conversation. Rendering, status codes and redirects stay with the transport: the returned
domain.ViewSelection says either "render this view with this model" or "redirect to this
conversation".

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/pergola"
		"github.com/aretw0/pergola/pkg/dsl"
		"github.com/aretw0/pergola/pkg/registry"
	)

	func main() {
		flow := dsl.New("signup").
			View("form").On("submit", "done").Builder().
			End("done").Render("welcome").Builder().
			MustBuild()

		flows, err := registry.NewFlows(flow)
		if err != nil {
			log.Fatal(err)
		}
		exec := pergola.New(flows)

		ctx := context.Background()
		resp, err := exec.Launch(ctx, "signup", nil, nil)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(resp.View.ViewName) // form

		// Later, in another request:
		resp, err = exec.SignalEvent(ctx, "submit", resp.EncodedKey(), nil)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(resp.View.ViewName, resp.Active()) // welcome false
	}
*/
package pergola
