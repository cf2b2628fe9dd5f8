// Package agent contains the model-driven agent used for every encapt
// worker and the coordinator.
//
// A ModelAgent keeps a bounded conversation history across tasks. Each task
// is appended as a user turn and the agent loops model → tool calls → tool
// responses until the model answers without calling a tool. Tool failures
// are fed back to the model as function responses so it can correct itself.
package agent
