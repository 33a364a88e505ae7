package relay

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/boardcast/analysis"
	"github.com/hazyhaar/boardcast/journal"
	"github.com/hazyhaar/boardcast/kit"
	"github.com/hazyhaar/boardcast/snapshot"
)

// endpoints are the read operations shared by the HTTP API and the MCP
// tools.
type endpoints struct {
	snapshot kit.Endpoint
	position kit.Endpoint
	eval     kit.Endpoint
	history  kit.Endpoint
}

func (s *Server) buildEndpoints() {
	wrap := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Chain(kit.Logging(s.logger, name))(ep)
	}
	s.ep = endpoints{
		snapshot: wrap("snapshot", s.snapshotEndpoint),
		position: wrap("position", s.positionEndpoint),
		eval:     wrap("eval", s.evalEndpoint),
		history:  wrap("history", s.historyEndpoint),
	}
}

type snapshotResponse struct {
	Seq      uint64                `json:"seq"`
	Snapshot snapshot.GameSnapshot `json:"snapshot"`
}

type positionResponse struct {
	Seq  uint64         `json:"seq"`
	FEN  string         `json:"fen"`
	Turn snapshot.Color `json:"turn"`
}

type historyRequest struct {
	Limit     int  `json:"limit"`
	GamesOnly bool `json:"games_only"`
}

func (s *Server) snapshotEndpoint(_ context.Context, _ any) (any, error) {
	u, ok := s.hub.Current()
	if !ok {
		return nil, errEmpty
	}
	return &snapshotResponse{Seq: u.Seq, Snapshot: u.Snapshot}, nil
}

func (s *Server) positionEndpoint(_ context.Context, _ any) (any, error) {
	u, ok := s.hub.Current()
	if !ok {
		return nil, errEmpty
	}
	fen, err := analysis.Position(u.Snapshot)
	if err != nil {
		return nil, err
	}
	return &positionResponse{Seq: u.Seq, FEN: fen, Turn: u.Snapshot.Turn}, nil
}

func (s *Server) evalEndpoint(_ context.Context, _ any) (any, error) {
	if s.dispatcher == nil {
		return nil, errNoAnalysis
	}
	ev, ok := s.dispatcher.Latest()
	if !ok {
		return nil, errEmpty
	}
	return &struct {
		analysis.Evaluation
		Label string `json:"label"`
	}{ev, ev.String()}, nil
}

func (s *Server) historyEndpoint(ctx context.Context, req any) (any, error) {
	if s.journal == nil {
		return nil, errNoJournal
	}
	r, _ := req.(*historyRequest)
	if r == nil {
		r = &historyRequest{}
	}
	var (
		entries []journal.Entry
		err     error
	)
	if r.GamesOnly {
		entries, err = s.journal.Games(ctx, r.Limit)
	} else {
		entries, err = s.journal.List(ctx, r.Limit)
	}
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return entries, nil
}

// RegisterMCP exposes the relay read operations as MCP tools on srv.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "board_snapshot",
		Description: "Current canonical board snapshot: pieces, players, clocks, highlights, arrows, move list and result.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, s.ep.snapshot, nil)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "board_position",
		Description: "Current position as FEN, with castling rights inferred from home squares.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, s.ep.position, nil)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "board_eval",
		Description: "Latest engine evaluation of the current position (centipawns or mate, white's point of view).",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, s.ep.eval, nil)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "board_history",
		Description: "Most recent journaled snapshots, newest first. With games_only, only the snapshots that started a new game.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit":      map[string]any{"type": "integer", "description": "Maximum entries (default 50)"},
				"games_only": map[string]any{"type": "boolean", "description": "Only new-game snapshots"},
			},
		},
	}, s.ep.history, kit.DecodeJSON[historyRequest]())
}
