package service

import (
	"context"
	"fmt"
	"strings"

	"blocknotes/internal/assistant"
	"blocknotes/internal/domain"
)

// AssistantResult is what the caller shows the user. Failures of the
// assistant itself are reported here, never as an error.
type AssistantResult struct {
	OK      bool     `json:"ok"`
	Message string   `json:"message"`
	Applied int      `json:"applied"`
	Skipped []string `json:"skipped,omitempty"`
}

const assistantFailedMessage = "could not complete the request"

// ─────────────────────────────────────────────────────────────
// Assistant Service — replays proposed actions as the owner
// ─────────────────────────────────────────────────────────────

type AssistantService struct {
	assistant assistant.Assistant
	reader    *ReconcileService
	pages     *PageService
	blocks    *BlockService
	emitter   EventEmitter
}

func NewAssistantService(a assistant.Assistant, reader *ReconcileService, pages *PageService, blocks *BlockService, emitter EventEmitter) *AssistantService {
	return &AssistantService{assistant: a, reader: reader, pages: pages, blocks: blocks, emitter: emitter}
}

// Run sends the page and instruction to the assistant and replays each
// proposed action through the ordinary page and block paths. Actions that
// fail validation or ownership checks are skipped and listed.
//
// Errors are returned only for the caller's own request: an unknown page,
// or a blank instruction.
func (s *AssistantService) Run(ctx context.Context, ownerID, pageID, instruction string) (*AssistantResult, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("%w: instruction is required", domain.ErrValidation)
	}
	page, err := s.pages.GetPage(ctx, ownerID, pageID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.reader.ReadBlocks(ctx, ReadRequest{View: domain.ViewOwner, OwnerID: ownerID, PageID: page.ID})
	if err != nil {
		return nil, err
	}

	if s.assistant == nil {
		return &AssistantResult{Message: "assistant is not configured"}, nil
	}
	actions, err := s.assistant.Propose(ctx, assistant.Request{
		PageID:      page.ID,
		Title:       page.Title,
		Blocks:      snapshot.Blocks,
		Instruction: instruction,
	})
	if err != nil {
		s.emitter.Emit(ctx, EventAssistantFailed, map[string]any{"pageId": page.ID, "error": err.Error()})
		return &AssistantResult{Message: assistantFailedMessage}, nil
	}

	res := &AssistantResult{OK: true}
	for i, a := range actions {
		n, err := s.Apply(ctx, ownerID, page.ID, a)
		res.Applied += n
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("action %d (%s): %v", i, a.Type, err))
		}
	}
	res.Message = fmt.Sprintf("applied %d of %d actions", len(actions)-len(res.Skipped), len(actions))
	return res, nil
}

// Apply replays one action on pageID as ownerID and returns how many
// changes it made. The MCP tools share this path.
func (s *AssistantService) Apply(ctx context.Context, ownerID, pageID string, a assistant.Action) (int, error) {
	switch a.Type {
	case assistant.ActionInsertBlocks:
		return s.insertBlocks(ctx, ownerID, pageID, a)

	case assistant.ActionUpdateBlock:
		patch := BlockPatch{Text: a.Text, Checked: a.Checked}
		if len(a.Content) > 0 {
			b, err := s.blocks.GetBlock(ctx, ownerID, a.BlockID)
			if err != nil {
				return 0, err
			}
			c, err := domain.DecodeContent(b.Type, a.Content)
			if err != nil {
				return 0, err
			}
			patch.Content = c
		}
		if err := s.onPage(ctx, ownerID, pageID, a.BlockID); err != nil {
			return 0, err
		}
		if _, err := s.blocks.UpdateBlock(ctx, ownerID, a.BlockID, patch); err != nil {
			return 0, err
		}
		return 1, nil

	case assistant.ActionDeleteBlock:
		if err := s.onPage(ctx, ownerID, pageID, a.BlockID); err != nil {
			return 0, err
		}
		if err := s.blocks.DeleteBlock(ctx, ownerID, a.BlockID); err != nil {
			return 0, err
		}
		return 1, nil

	case assistant.ActionCreatePage:
		if _, err := s.pages.CreatePage(ctx, ownerID, a.Title, &pageID); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return 0, fmt.Errorf("%w: unknown action %q", domain.ErrValidation, a.Type)
}

func (s *AssistantService) insertBlocks(ctx context.Context, ownerID, pageID string, a assistant.Action) (int, error) {
	after := a.AfterBlockID
	n := 0
	for _, in := range a.Blocks {
		c, err := domain.DecodeContent(in.Type, in.Content)
		if err != nil {
			return n, err
		}
		b, err := s.blocks.CreateBlock(ctx, ownerID, pageID, NewBlock{
			AfterBlockID:    after,
			Type:            in.Type,
			Content:         c,
			BackgroundColor: in.BackgroundColor,
		})
		if err != nil {
			return n, err
		}
		after = &b.ID
		n++
	}
	return n, nil
}

// onPage keeps the assistant's block edits within the page it was given.
func (s *AssistantService) onPage(ctx context.Context, ownerID, pageID, blockID string) error {
	b, err := s.blocks.GetBlock(ctx, ownerID, blockID)
	if err != nil {
		return err
	}
	if b.PageID != pageID {
		return fmt.Errorf("block %s: %w", blockID, domain.ErrNotFound)
	}
	return nil
}
