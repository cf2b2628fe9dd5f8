package toolkit

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Scope is the capability an agent's tool set is bound to. It decides which
// files the agent may write and whom it may message.
type Scope struct {
	// Agent is the owning agent's name.
	Agent string
	// Coordinator marks the scope of the coordinating agent.
	Coordinator bool
	// Enforce toggles ownership checks. Recipient checks always apply.
	Enforce bool

	table *Ownership
}

// Ownership maps bean files, keyed by their slash separated path relative to
// the beans directory, to the agent that owns them. It also records every
// agent that can receive messages.
type Ownership struct {
	owners     map[string]string // rel path -> agent
	byBase     map[string]string // file name -> rel path
	recipients map[string]struct{}
}

// NewOwnership creates an empty ownership table.
func NewOwnership() *Ownership {
	return &Ownership{
		owners:     map[string]string{},
		byBase:     map[string]string{},
		recipients: map[string]struct{}{},
	}
}

// AddAgent registers an agent as a message recipient.
func (o *Ownership) AddAgent(agent string) {
	o.recipients[agent] = struct{}{}
}

// Assign registers agent as the owner of file and as a recipient. file is
// relative to the beans directory and may live in a subdirectory.
func (o *Ownership) Assign(file, agent string) {
	file = cleanPath(file)
	o.owners[file] = agent
	o.byBase[path.Base(file)] = file
	o.AddAgent(agent)
}

// Agents returns all known recipients in name order.
func (o *Ownership) Agents() []string {
	names := make([]string, 0, len(o.recipients))
	for n := range o.recipients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Worker returns the scope of a bean agent.
func (o *Ownership) Worker(agent string, enforce bool) Scope {
	return Scope{Agent: agent, Enforce: enforce, table: o}
}

// Coordinator returns the scope of the coordinating agent.
func (o *Ownership) Coordinator(agent string, enforce bool) Scope {
	return Scope{Agent: agent, Coordinator: true, Enforce: enforce, table: o}
}

// Resolve maps a file name given by the model to the path it refers to. A
// bare file name of an owned bean resolves to the bean's location, so
// "OrderService.kt" addresses "orders/OrderService.kt".
func (s Scope) Resolve(file string) string {
	file = cleanPath(file)
	if _, ok := s.table.owners[file]; ok {
		return file
	}
	if !strings.Contains(file, "/") {
		if rel, ok := s.table.byBase[file]; ok {
			return rel
		}
	}
	return file
}

// CanWrite reports whether the scope permits writing the resolved file.
// Workers may only write files they own. The coordinator may only write
// files nobody owns whose name no bean uses elsewhere.
func (s Scope) CanWrite(file string) bool {
	if !s.Enforce {
		return true
	}
	owner, owned := s.Owner(file)
	if s.Coordinator {
		return !owned
	}
	_, exact := s.table.owners[cleanPath(file)]
	return exact && owner == s.Agent
}

// Owner returns the agent owning file, or a bean with the same file name
// elsewhere in the tree.
func (s Scope) Owner(file string) (string, bool) {
	file = cleanPath(file)
	if owner, ok := s.table.owners[file]; ok {
		return owner, true
	}
	if rel, ok := s.table.byBase[path.Base(file)]; ok {
		return s.table.owners[rel], true
	}
	return "", false
}

// KnowsAgent reports whether name is a valid message recipient.
func (s Scope) KnowsAgent(name string) bool {
	_, ok := s.table.recipients[name]
	return ok
}

func cleanPath(file string) string {
	return path.Clean(filepath.ToSlash(strings.ReplaceAll(file, `\`, "/")))
}
