// Package tools exposes the ticket operations as planner-facing tool
// definitions and dispatches tool calls into the ticket store. The
// definitions mirror the tool-usage rules the procedures enforce, so a
// planner that follows its procedural prompt always produces inputs this
// dispatcher accepts.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/quietdesk/deskmem/tickets"
)

// Definition describes one tool in the shape model APIs expect: a name, a
// description and a JSON Schema for the input.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// TicketToolDefinitions returns the definitions for the three ticket tools.
func TicketToolDefinitions() []Definition {
	return []Definition{
		{
			Name:        "create_ticket",
			Description: "Open a new support ticket. Requires the customer name and a description of the issue. Priority defaults to Medium.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"customer_name": StringProperty("Name of the customer the ticket is for"),
				"issue":         StringProperty("Description of the problem"),
				"device":        StringProperty("Optional: device model (e.g. Archer-AX55)"),
				"priority": StringEnumProperty("Optional: ticket priority, defaults to Medium",
					tickets.PriorityLow, tickets.PriorityMedium, tickets.PriorityHigh, tickets.PriorityCritical),
			}, "customer_name", "issue"),
		},
		{
			Name:        "update_ticket",
			Description: "Update an existing ticket: append a note, set the device, or change the status.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"ticket_id": StringProperty("Id of the ticket to update"),
				"note":      StringProperty("Optional: note to append"),
				"device":    StringProperty("Optional: device model to record"),
				"status": StringEnumProperty("Optional: new ticket status",
					tickets.StatusNew, tickets.StatusOpen, tickets.StatusEscalated, tickets.StatusResolved),
			}, "ticket_id"),
		},
		{
			Name:        "lookup_ticket",
			Description: "Look up a ticket by id. Use when the user asks for status, details, or history.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"ticket_id": StringProperty("Id of the ticket to look up"),
			}, "ticket_id"),
		},
	}
}

type createInput struct {
	CustomerName string `json:"customer_name"`
	Issue        string `json:"issue"`
	Device       string `json:"device"`
	Priority     string `json:"priority"`
}

type updateInput struct {
	TicketID string `json:"ticket_id"`
	Note     string `json:"note"`
	Device   string `json:"device"`
	Status   string `json:"status"`
}

type lookupInput struct {
	TicketID string `json:"ticket_id"`
}

// Dispatch executes one tool call against the store. Unknown tools and
// malformed inputs are errors; a lookup or update of a missing ticket is
// not, it returns a result carrying the miss message, since the planner
// should see the miss rather than a failed turn.
func Dispatch(store *tickets.Store, name string, input json.RawMessage) (*tickets.ToolResult, error) {
	switch name {
	case "create_ticket":
		var in createInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("parse %s input: %w", name, err)
		}
		if in.CustomerName == "" || in.Issue == "" {
			return nil, fmt.Errorf("%s requires customer_name and issue", name)
		}
		return store.Create(in.CustomerName, in.Issue, in.Device, in.Priority)

	case "update_ticket":
		var in updateInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("parse %s input: %w", name, err)
		}
		if in.TicketID == "" {
			return nil, fmt.Errorf("%s requires ticket_id", name)
		}
		result, ok, err := store.UpdateTicket(in.TicketID, tickets.Update{
			Note:   in.Note,
			Device: in.Device,
			Status: in.Status,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return missResult(in.TicketID), nil
		}
		return result, nil

	case "lookup_ticket":
		var in lookupInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("parse %s input: %w", name, err)
		}
		if in.TicketID == "" {
			return nil, fmt.Errorf("%s requires ticket_id", name)
		}
		result, ok, err := store.Lookup(in.TicketID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return missResult(in.TicketID), nil
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func missResult(ticketID string) *tickets.ToolResult {
	return &tickets.ToolResult{
		Status:  "not_found",
		Message: fmt.Sprintf("Ticket %s not found", ticketID),
	}
}
