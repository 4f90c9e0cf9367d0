package domain

type ScoreKind string

const (
	ScoreCentipawns ScoreKind = "cp"
	ScoreMate       ScoreKind = "mate"
)

// Score is always expressed from White's point of view.
type Score struct {
	Kind  ScoreKind
	Value int
}

type EngineLine struct {
	Move    string
	MoveSAN string
	Score   Score
	PV      []string
}

type EngineResult struct {
	Evaluation  Score
	BestMove    string
	BestMoveSAN string
	TopLines    []EngineLine
	Depth       int
}

type Opening struct {
	ECO  string
	Name string
}

type AnalysisReport struct {
	FEN     string
	Plies   int
	Opening *Opening
	Result  EngineResult
}
