// Package session assembles the full turn sequence sent to the model:
// the system preamble, the owner's recent history, optional journey
// enrichment, and the incoming request turns.
package session

import (
	"context"
	"fmt"

	"github.com/tourplanner/travel-service/internal/history"
	"github.com/tourplanner/travel-service/internal/model"
)

// Assembler builds model-ready sessions.
type Assembler struct {
	history  *history.Service
	preamble string
}

// NewAssembler returns an Assembler over the given history service.
// An empty preamble selects DefaultPreamble.
func NewAssembler(h *history.Service, preamble string) *Assembler {
	if preamble == "" {
		preamble = DefaultPreamble
	}
	return &Assembler{history: h, preamble: preamble}
}

// Preamble returns the system preamble in use.
func (a *Assembler) Preamble() string { return a.preamble }

// Assemble builds the ordered turn sequence for one request. History is
// fetched for ownerKey and inserted after the preamble; a non-empty
// journeyNote becomes a system turn between history and the incoming
// turns. History failures yield a session without history.
func (a *Assembler) Assemble(ctx context.Context, ownerKey string, incoming []model.Turn, journeyNote string) []model.Turn {
	turns := make([]model.Turn, 0, len(incoming)+4)
	turns = append(turns, model.Turn{Role: model.RoleSystem, Content: a.preamble})

	for _, m := range a.history.Recent(ctx, ownerKey, 0) {
		turns = append(turns, model.Turn{Role: m.Role, Content: m.Content})
	}

	if journeyNote != "" {
		turns = append(turns, model.Turn{
			Role: model.RoleSystem,
			Content: fmt.Sprintf(
				"[JOURNEY DATA FROM GOOGLE MAPS]\n%s\n[Use this information to provide a helpful travel summary to the user]",
				journeyNote),
		})
	}

	turns = append(turns, incoming...)
	return turns
}

// Render assembles the session and formats it for the model runtime.
func (a *Assembler) Render(ctx context.Context, ownerKey string, incoming []model.Turn, journeyNote string) string {
	return RenderLlama(a.Assemble(ctx, ownerKey, incoming, journeyNote))
}
