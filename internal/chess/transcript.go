package chess

import (
	"fmt"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-insight/internal/domain"
)

var (
	tagPairPattern    = regexp.MustCompile(`^\[\s*([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\s*\]$`)
	moveNumberPattern = regexp.MustCompile(`^\d+\.+`)
	nagPattern        = regexp.MustCompile(`^\$\d+$`)
)

var resultTokens = map[string]struct{}{
	"1-0": {}, "0-1": {}, "1/2-1/2": {}, "½-½": {}, "*": {},
}

// Position is the board state reached after replaying a transcript.
type Position struct {
	game    *nchess.Game
	tags    map[string]string
	fromFEN bool
}

func (p *Position) FEN() string { return p.game.FEN() }

func (p *Position) Plies() int { return len(p.game.Moves()) }

func (p *Position) WhiteToMove() bool { return p.game.Position().Turn() == nchess.White }

func (p *Position) LegalMoves() int { return len(p.game.ValidMoves()) }

func (p *Position) Tag(name string) string { return p.tags[name] }

// SAN renders a UCI move in standard algebraic notation from this position.
// It returns an empty string when the move is not legal here.
func (p *Position) SAN(uciMove string) string {
	pos := p.game.Position()
	if pos == nil || uciMove == "" {
		return ""
	}
	mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(uciMove))
	if err != nil || mv == nil {
		return ""
	}
	for _, legal := range p.game.ValidMoves() {
		if legal.S1() == mv.S1() && legal.S2() == mv.S2() && legal.Promo() == mv.Promo() {
			return nchess.AlgebraicNotation{}.Encode(pos, &legal)
		}
	}
	return ""
}

// ParseTranscript replays a PGN-like transcript and returns the final
// position. Unparseable trailing movetext is ignored; a transcript with
// neither a tag pair nor one legal move is rejected.
func ParseTranscript(transcript string) (*Position, error) {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return nil, fmt.Errorf("%w: empty transcript", domain.ErrMalformedTranscript)
	}

	tags, movetext := splitTags(text)
	var opts []func(*nchess.Game)
	_, fromFEN := tags["FEN"]
	if fromFEN {
		opt, err := nchess.FEN(tags["FEN"])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid FEN tag: %v", domain.ErrMalformedTranscript, err)
		}
		opts = append(opts, opt)
	}

	if game, ok := parseStrict(text); ok && (len(game.Moves()) > 0 || len(tags) > 0) {
		return &Position{game: game, tags: tags, fromFEN: fromFEN}, nil
	}

	game := nchess.NewGame(opts...)
	applied := replayTokens(game, movetextTokens(movetext))
	if applied == 0 && len(tags) == 0 {
		return nil, fmt.Errorf("%w: no legal moves found", domain.ErrMalformedTranscript)
	}
	return &Position{game: game, tags: tags, fromFEN: fromFEN}, nil
}

func parseStrict(text string) (game *nchess.Game, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			game, ok = nil, false
		}
	}()
	opt, err := nchess.PGN(strings.NewReader(text))
	if err != nil {
		return nil, false
	}
	return nchess.NewGame(opt), true
}

// splitTags separates leading tag pairs from the movetext.
func splitTags(text string) (map[string]string, string) {
	tags := make(map[string]string)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	idx := 0
	for ; idx < len(lines); idx++ {
		line := strings.TrimSpace(lines[idx])
		if line == "" {
			continue
		}
		m := tagPairPattern.FindStringSubmatch(line)
		if m == nil {
			break
		}
		tags[m[1]] = strings.ReplaceAll(m[2], `\"`, `"`)
	}
	return tags, strings.Join(lines[idx:], "\n")
}

// movetextTokens drops comments, variations, NAGs, move numbers and
// results, leaving candidate move tokens in order.
func movetextTokens(movetext string) []string {
	var b strings.Builder
	depth := 0
	inBrace := false
	inLineComment := false
	for _, r := range movetext {
		switch {
		case inLineComment:
			if r == '\n' {
				inLineComment = false
				b.WriteRune(' ')
			}
		case inBrace:
			if r == '}' {
				inBrace = false
				b.WriteRune(' ')
			}
		case r == '{':
			inBrace = true
		case r == ';':
			inLineComment = true
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
			b.WriteRune(' ')
		case depth > 0:
		default:
			b.WriteRune(r)
		}
	}

	var tokens []string
	for _, field := range strings.Fields(b.String()) {
		field = moveNumberPattern.ReplaceAllString(field, "")
		if field == "" || nagPattern.MatchString(field) {
			continue
		}
		if _, ok := resultTokens[field]; ok {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// replayTokens pushes moves until the first token that is not legal and
// reports how many were applied.
func replayTokens(game *nchess.Game, tokens []string) int {
	applied := 0
	for _, tok := range tokens {
		if !pushToken(game, tok) {
			break
		}
		applied++
	}
	return applied
}

func pushToken(game *nchess.Game, tok string) bool {
	for _, candidate := range tokenVariants(tok) {
		if err := game.PushNotationMove(candidate, nchess.AlgebraicNotation{}, nil); err == nil {
			return true
		}
	}
	pos := game.Position()
	if mv, err := (nchess.UCINotation{}).Decode(pos, strings.ToLower(tok)); err == nil {
		return game.Move(mv, nil) == nil
	}
	return false
}

func tokenVariants(tok string) []string {
	variants := []string{tok}
	trimmed := strings.TrimRight(tok, "!?")
	bare := strings.TrimRight(trimmed, "+#")
	for _, v := range []string{trimmed, bare} {
		if v != "" && v != variants[len(variants)-1] {
			variants = append(variants, v)
		}
	}
	switch bare {
	case "0-0":
		variants = append(variants, "O-O")
	case "0-0-0":
		variants = append(variants, "O-O-O")
	}
	return variants
}
