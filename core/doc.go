// Package core provides the foundational domain types shared by every encapt
// component:
//
//   - Content / Part (role based conversation segments exchanged with models)
//   - Task (a unit of instructed work addressed to an agent)
//   - Agent (anything that can process a Task and produce text)
//   - ToolContext (the scoped surface handed to tool implementations)
//
// Implementation concerns (model providers, routing, persistence) live in
// their own packages and depend on core, never the other way round.
package core
