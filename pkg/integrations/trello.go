package integrations

import (
	"context"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type trelloNoParams struct{}

type trelloBoardParams struct {
	BoardID string `param:"board_id" validate:"required"`
}

type trelloListParams struct {
	ListID string `param:"list_id" validate:"required"`
}

type trelloCreateCardParams struct {
	ListID      string   `param:"list_id" validate:"required"`
	Name        string   `param:"name" validate:"required"`
	Description string   `param:"description"`
	Due         string   `param:"due"`
	Labels      []string `param:"labels"`
}

type trelloSearchParams struct {
	Query   string `param:"query" validate:"required"`
	BoardID string `param:"board_id"`
}

type trelloHandlers struct {
	client *clients.TrelloClient
}

func registerTrello(r *Registry, client *clients.TrelloClient) {
	h := &trelloHandlers{client: client}
	r.Handle(types.AppTrello, "list_boards", Typed(h.listBoards))
	r.Handle(types.AppTrello, "get_board_lists", Typed(h.boardLists))
	r.Handle(types.AppTrello, "get_list_cards", Typed(h.listCards))
	r.Handle(types.AppTrello, "create_card", Typed(h.createCard))
	r.Handle(types.AppTrello, "search_cards", Typed(h.searchCards))
}

func (h *trelloHandlers) listBoards(ctx context.Context, call Call, _ *trelloNoParams) (Payload, error) {
	boards, err := h.client.ListBoards(ctx, call.Token())
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(boards))
	for _, b := range boards {
		out = append(out, map[string]any{
			"id":            str(b, "id"),
			"board_id":      str(b, "id"),
			"name":          str(b, "name"),
			"summary":       str(b, "name"),
			"description":   str(b, "desc"),
			"url":           str(b, "url"),
			"last_activity": str(b, "dateLastActivity"),
			"closed":        b["closed"] == true,
		})
	}
	return Payload{"boards": items(out), "count": len(out)}, nil
}

func (h *trelloHandlers) boardLists(ctx context.Context, call Call, p *trelloBoardParams) (Payload, error) {
	lists, err := h.client.BoardLists(ctx, call.Token(), p.BoardID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(lists))
	for _, l := range lists {
		out = append(out, map[string]any{
			"id":       str(l, "id"),
			"list_id":  str(l, "id"),
			"board_id": firstNonEmpty(str(l, "idBoard"), p.BoardID),
			"name":     str(l, "name"),
			"summary":  str(l, "name"),
		})
	}
	return Payload{"lists": items(out), "count": len(out)}, nil
}

func (h *trelloHandlers) listCards(ctx context.Context, call Call, p *trelloListParams) (Payload, error) {
	cards, err := h.client.ListCards(ctx, call.Token(), p.ListID)
	if err != nil {
		return nil, err
	}
	return Payload{"cards": items(cardItems(cards)), "count": len(cards)}, nil
}

func (h *trelloHandlers) createCard(ctx context.Context, call Call, p *trelloCreateCardParams) (Payload, error) {
	card, err := h.client.CreateCard(ctx, call.Token(), p.ListID, p.Name, p.Description, p.Due, p.Labels)
	if err != nil {
		return nil, err
	}
	return Payload{"card": cardItem(card)}, nil
}

func (h *trelloHandlers) searchCards(ctx context.Context, call Call, p *trelloSearchParams) (Payload, error) {
	cards, err := h.client.SearchCards(ctx, call.Token(), p.Query, p.BoardID)
	if err != nil {
		return nil, err
	}
	return Payload{"cards": items(cardItems(cards)), "count": len(cards), "query": p.Query}, nil
}

func cardItems(cards []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(cards))
	for _, c := range cards {
		out = append(out, cardItem(c))
	}
	return out
}

func cardItem(c map[string]any) map[string]any {
	return map[string]any{
		"id":          str(c, "id"),
		"card_id":     firstNonEmpty(str(c, "shortLink"), str(c, "id")),
		"board_id":    str(c, "idBoard"),
		"list_id":     str(c, "idList"),
		"name":        str(c, "name"),
		"summary":     str(c, "name"),
		"description": str(c, "desc"),
		"due":         str(c, "due"),
		"url":         str(c, "url"),
	}
}
