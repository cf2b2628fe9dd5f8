// Package prompt renders the instructions and task envelopes given to encapt
// agents and extracts tagged payloads from their answers.
package prompt

import (
	"bytes"
	"sort"
	"strings"
	"text/template"

	"github.com/hupe1980/encapt/bean"
)

// Tags wrapping agent results.
const (
	ResultTag   = "result"
	ResponseTag = "response"
)

var templates = template.Must(template.New("prompt").Parse(`
{{- define "coordinator" -}}
You are responsible for managing the Quarkus codebase.
Your responsibilities include:
1. Coordinating changes across multiple beans
2. Ensuring overall project consistency
3. Delegating tasks to appropriate bean agents

Use the provided tools to write files, run tests, get test summaries, and send messages to other agents when needed.
{{- if .Beans}}

The beans currently managed, each owned by the agent of the same name:
{{- range .Beans}}
- {{.Summary}}
{{- end}}
{{- end}}

When creating a new agent or bean, only write a kotlin class with appropriate Quarkus annotations and a doc comment that outlines the responsibilities of the bean. The agent will handle the rest.

Always wrap your final response in <result> tags.
{{- end}}

{{- define "bean" -}}
You are responsible for the {{.Self.Name}} Quarkus bean.
Your responsibilities include:
{{.Self.Doc}}

Here are the other beans and their responsibilities, derived from the classes doccomment:
{{.Peers}}. Inject them using quarkus @Inject annotation as appropriate and needed.

Fully implement the responsibilities of the bean.
Use the provided tools to read and modify your bean's content, run tests, get test summaries, and send messages to other agents.
When you notice code errors or a failed test, edit the code and try running again, until the tests pass.
Coordinate with the {{.Coordinator}} Agent for changes that affect multiple beans. When you make changes, ensure they are tested and working correctly. Edit and test until you are happy.

Message another agent with your message tool if you need to know more details about its service, ask for help, or request a change. You should also work with them to meet the shared responsibilities of the beans.

When calling send_message, always pass {{.Self.Name}} as from_agent.

Always wrap your final response in <result> tags.
{{- end}}

{{- define "message" -}}
You have received a message from {{.From}}:

{{.Body}}

Please process this message and respond appropriately. If any actions are required, take them using your available tools.

Your response is delivered to {{.From}} automatically. Always respond something, but fulfill the request first if possible.

Always put <response> tags around your response. For example:
<response>I have processed your request and updated the UserService.</response>
{{- end}}

{{- define "reply" -}}
{{.From}} replied to your message:

{{.Body}}

Continue your work with this information. Do not reply to this message with send_message unless you need something new.

Always wrap your final response in <result> tags.
{{- end}}

{{- define "change_request" -}}
Process the following change request:

{{.Request}}

Analyze which beans need to be modified or created. Use the provided tools to make necessary changes,
run tests, and ensure the changes are working correctly. Coordinate between agents as needed. Ensure a bean is only edited by its agent. If you believe a change needs to be made, communicate with that agent using the send_message tool to request the change.

Always put <result> tags around the result of your actions. For example, <result>Modified UserService to include a new method.</result>. Include ALL relevant details in the result tag, multiple lines are fine, but there must only be one tag.
{{- end}}
`))

func render(name string, data any) string {
	var buf bytes.Buffer
	// Templates are static and their data is fully typed.
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		panic(err)
	}
	return buf.String()
}

// Coordinator renders the coordinator instruction.
func Coordinator(beans []bean.Bean) string {
	return render("coordinator", struct{ Beans []bean.Bean }{sorted(beans)})
}

// Bean renders the instruction of the agent owning self. Peers are listed
// by name as "<Name>: <Doc>" separated by ", ", self excluded.
func Bean(self bean.Bean, peers []bean.Bean, coordinator string) string {
	return render("bean", struct {
		Self        bean.Bean
		Peers       string
		Coordinator string
	}{self, PeerList(self, peers), coordinator})
}

// PeerList joins the summaries of every bean other than self.
func PeerList(self bean.Bean, beans []bean.Bean) string {
	parts := make([]string, 0, len(beans))
	for _, b := range sorted(beans) {
		if b.Name == self.Name {
			continue
		}
		parts = append(parts, b.Summary())
	}
	return strings.Join(parts, ", ")
}

// Message renders the envelope of an inter-agent message.
func Message(from, body string) string {
	return render("message", struct{ From, Body string }{from, body})
}

// Reply renders the task content delivering a response back to the sender.
func Reply(from, body string) string {
	return render("reply", struct{ From, Body string }{from, body})
}

// ChangeRequest renders the root task content for a change request.
func ChangeRequest(request string) string {
	return render("change_request", struct{ Request string }{strings.TrimSpace(request)})
}

// Extract returns the trimmed text between the first <tag> and the last
// </tag>. ok is false when either tag is missing.
func Extract(text, tag string) (string, bool) {
	open, close := "<"+tag+">", "</"+tag+">"
	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(open):]
	end := strings.LastIndex(rest, close)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// ExtractOr returns the tagged payload or the whole trimmed text.
func ExtractOr(text, tag string) string {
	if s, ok := Extract(text, tag); ok {
		return s
	}
	return strings.TrimSpace(text)
}

func sorted(beans []bean.Bean) []bean.Bean {
	out := append([]bean.Bean(nil), beans...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
