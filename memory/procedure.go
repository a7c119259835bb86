package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/quietdesk/deskmem/tickets"
)

// ProcedureID names one of the closed set of support workflows.
type ProcedureID string

const (
	StandardSupport  ProcedureID = "standard_support"
	QuickResolution  ProcedureID = "quick_resolution"
	EscalatedSupport ProcedureID = "escalated_support"
)

// Procedure is a static workflow definition: an ordered step list and the
// only tool set a planner may select from while the procedure is active.
type Procedure struct {
	ID              ProcedureID
	Name            string
	Steps           []string
	AllowedTools    []string
	EscalationRules []string
}

// ToolRule describes how a planner may invoke one ticket tool.
type ToolRule struct {
	RequiredFields   []string
	OptionalFields   []string
	RequiresTicketID bool
	CanUpdate        []string
	DefaultPriority  string
	UseWhen          string
}

var diagnosticOrder = []string{
	"1. Check ticket status and priority",
	"2. Retrieve relevant memories (semantic + episodic)",
	"3. If device info missing, ask for device model",
	"4. If issue unclear, ask for specific symptoms",
	"5. Suggest troubleshooting steps based on issue type",
	"6. If unresolved after 2 attempts, escalate",
}

var procedures = map[ProcedureID]Procedure{
	StandardSupport: {
		ID:              StandardSupport,
		Name:            "Standard Support Flow",
		Steps:           diagnosticOrder,
		AllowedTools:    []string{"create_ticket", "update_ticket", "lookup_ticket"},
		EscalationRules: []string{"critical", "high_priority_3_days"},
	},
	QuickResolution: {
		ID:   QuickResolution,
		Name: "Quick Resolution Flow",
		Steps: []string{
			"1. Check if issue matches known quick fixes",
			"2. Apply quick fix if available",
			"3. If not, escalate to standard flow",
		},
		AllowedTools: []string{"lookup_ticket"},
	},
	EscalatedSupport: {
		ID:   EscalatedSupport,
		Name: "Escalated Support Flow",
		Steps: []string{
			"1. Review escalation reason",
			"2. Gather all context (memories + ticket history)",
			"3. Apply Level 2 diagnostic procedures",
			"4. Document resolution path",
		},
		AllowedTools: []string{"lookup_ticket", "update_ticket"},
	},
}

var toolUsageRules = map[string]ToolRule{
	"create_ticket": {
		RequiredFields:  []string{"customer_name", "issue"},
		OptionalFields:  []string{"device", "priority"},
		DefaultPriority: tickets.PriorityMedium,
	},
	"update_ticket": {
		RequiresTicketID: true,
		CanUpdate:        []string{"note", "device", "status"},
	},
	"lookup_ticket": {
		RequiresTicketID: true,
		UseWhen:          "user asks for status, details, or history",
	},
}

// ProcedureByID returns a copy of the named procedure. Copies keep the
// static tables immutable.
func ProcedureByID(id ProcedureID) (Procedure, bool) {
	p, ok := procedures[id]
	if !ok {
		return Procedure{}, false
	}
	return cloneProcedure(p), true
}

// ToolRules returns a copy of the static tool-usage rule table.
func ToolRules() map[string]ToolRule {
	out := make(map[string]ToolRule, len(toolUsageRules))
	for name, rule := range toolUsageRules {
		out[name] = rule
	}
	return out
}

// ValidateToolSelection rejects tool selections outside the procedure's
// allowed set. The allowed set is the only valid tool set for a procedure;
// a planner choosing anything else is a bug to surface, not to tolerate.
func ValidateToolSelection(id ProcedureID, tool string) error {
	p, ok := procedures[id]
	if !ok {
		return fmt.Errorf("unknown procedure %q", id)
	}
	for _, allowed := range p.AllowedTools {
		if tool == allowed {
			return nil
		}
	}
	return fmt.Errorf("tool %q is not allowed in procedure %q (allowed: %s)",
		tool, id, strings.Join(p.AllowedTools, ", "))
}

// EscalationRule decides whether a ticket forces an escalation.
type EscalationRule struct {
	ID      string
	Action  string
	Message string
	applies func(t *tickets.Ticket, now time.Time) bool
}

// escalationRules are evaluated in fixed priority order; the first match
// wins.
var escalationRules = []EscalationRule{
	{
		ID:      "critical",
		Action:  "escalate_to_level2",
		Message: "Issue escalated to Level 2 support due to critical priority.",
		applies: func(t *tickets.Ticket, _ time.Time) bool {
			return t.Priority == tickets.PriorityCritical || t.Status == tickets.StatusEscalated
		},
	},
	{
		ID:      "high_priority_3_days",
		Action:  "escalate_to_level2",
		Message: "High priority ticket open for 3+ days, escalating.",
		applies: func(t *tickets.Ticket, now time.Time) bool {
			if t.Priority != tickets.PriorityHigh || t.CreatedAt == "" {
				return false
			}
			created, ok := parseWhen(t.CreatedAt)
			if !ok {
				return false
			}
			return int(now.Sub(created).Hours()/24) >= 3
		},
	},
}

// EscalationDecision evaluates the escalation rules against a ticket in
// priority order and returns the first matching rule.
func EscalationDecision(t *tickets.Ticket, now time.Time) (EscalationRule, bool) {
	if t == nil {
		return EscalationRule{}, false
	}
	for _, rule := range escalationRules {
		if rule.applies(t, now) {
			return rule, true
		}
	}
	return EscalationRule{}, false
}

// ApplyEscalation is the state transition: when an authoritative ticket
// result matches an escalation rule, the active procedure is forced to
// escalated_support regardless of the planner's choice. The override is
// terminal for the turn, and there is no de-escalation path: once a
// session reaches escalated_support this engine never steps it back down.
// An unknown current procedure falls back to standard_support.
func ApplyEscalation(current ProcedureID, result *tickets.ToolResult, now time.Time) (ProcedureID, *EscalationRule) {
	if _, ok := procedures[current]; !ok {
		current = StandardSupport
	}
	if result == nil || result.Ticket == nil {
		return current, nil
	}
	rule, ok := EscalationDecision(result.Ticket, now)
	if !ok {
		return current, nil
	}
	matched := rule
	return EscalatedSupport, &matched
}

// ProceduralPrompt renders a procedure's steps and the tool-usage rules
// for prompt injection.
func ProceduralPrompt(id ProcedureID) string {
	p, ok := procedures[id]
	if !ok {
		p = procedures[StandardSupport]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are following the %s procedure.\n\nSTEPS:\n", p.Name)
	for _, step := range p.Steps {
		b.WriteString(step)
		b.WriteByte('\n')
	}
	b.WriteString("\nTOOL USAGE RULES:\n")
	for _, name := range p.AllowedTools {
		rule := toolUsageRules[name]
		fmt.Fprintf(&b, "- %s:", name)
		if len(rule.RequiredFields) > 0 {
			fmt.Fprintf(&b, " required fields %s;", strings.Join(rule.RequiredFields, ", "))
		}
		if len(rule.OptionalFields) > 0 {
			fmt.Fprintf(&b, " optional fields %s;", strings.Join(rule.OptionalFields, ", "))
		}
		if rule.RequiresTicketID {
			b.WriteString(" requires ticket_id;")
		}
		if len(rule.CanUpdate) > 0 {
			fmt.Fprintf(&b, " can update %s;", strings.Join(rule.CanUpdate, ", "))
		}
		if rule.DefaultPriority != "" {
			fmt.Fprintf(&b, " default priority %s;", rule.DefaultPriority)
		}
		if rule.UseWhen != "" {
			fmt.Fprintf(&b, " use when %s;", rule.UseWhen)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nYou MUST follow this procedure. Do not deviate.")
	return b.String()
}

// parseWhen parses ticket timestamps, which may be bare dates or RFC3339.
func parseWhen(s string) (time.Time, bool) {
	if t, err := time.Parse(tickets.DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func cloneProcedure(p Procedure) Procedure {
	c := p
	c.Steps = append([]string(nil), p.Steps...)
	c.AllowedTools = append([]string(nil), p.AllowedTools...)
	c.EscalationRules = append([]string(nil), p.EscalationRules...)
	return c
}
