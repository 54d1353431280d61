// ABOUTME: Deterministic assembly of the ordered instruction list fed to the engine
// ABOUTME: System prompt, then memory context (or lookup hint), then prior turns

package memory

import (
	"fmt"

	"github.com/Jegama/calvinist-parrot-sub000/internal/engine"
	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
)

// Assemble builds the instruction list for one turn. Order matters: the
// memory context sits directly after the system prompt, before any turn
// history, so it cannot override core behavioral instructions. Reviewer
// and citations messages stay in persisted history but are excluded here.
//
// When no memory context exists and the owner is known, a one-line hint
// binds the correct owner id for a self-served memory-lookup tool call,
// so the engine never has to guess an identity parameter.
func Assemble(systemPrompt, memoryContext, ownerID string, prior []*store.Message) []engine.Instruction {
	instructions := make([]engine.Instruction, 0, len(prior)+2)
	instructions = append(instructions, engine.Instruction{Role: engine.RoleSystem, Content: systemPrompt})

	if memoryContext != "" {
		instructions = append(instructions, engine.Instruction{Role: engine.RoleSystem, Content: memoryContext})
	} else if ownerID != "" {
		hint := fmt.Sprintf("If past context about this user would help, look it up with owner id %q.", ownerID)
		instructions = append(instructions, engine.Instruction{Role: engine.RoleSystem, Content: hint})
	}

	for _, msg := range prior {
		switch msg.Kind {
		case store.KindUser:
			instructions = append(instructions, engine.Instruction{Role: engine.RoleUser, Content: msg.Body})
		case store.KindAssistant:
			instructions = append(instructions, engine.Instruction{Role: engine.RoleAssistant, Content: msg.Body})
		}
	}

	return instructions
}
