package chessdto

type Score struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

type Line struct {
	Move    string   `json:"move"`
	MoveSAN string   `json:"move_san,omitempty"`
	Score   Score    `json:"score"`
	PV      []string `json:"pv"`
}

type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

// AnalysisResponse carries scores from White's point of view. BestMove is
// empty when the side to move has no legal move.
type AnalysisResponse struct {
	FEN         string   `json:"fen"`
	Plies       int      `json:"plies"`
	Opening     *Opening `json:"opening,omitempty"`
	Evaluation  Score    `json:"evaluation"`
	BestMove    string   `json:"best_move"`
	BestMoveSAN string   `json:"best_move_san,omitempty"`
	Depth       int      `json:"depth,omitempty"`
	TopLines    []Line   `json:"top_lines"`
}
