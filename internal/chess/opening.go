package chess

import (
	"sync"

	"github.com/corentings/chess/v2/opening"

	"github.com/park285/chess-insight/internal/domain"
)

var ecoBook = sync.OnceValue(func() *opening.BookECO { return opening.NewBookECO() })

// Opening names the deepest ECO line the game followed. Games that start
// from a custom FEN have no opening.
func Opening(p *Position) *domain.Opening {
	if p == nil || p.fromFEN || len(p.game.Moves()) == 0 {
		return nil
	}
	book := ecoBook()
	if book == nil {
		return nil
	}
	eco := book.Find(p.game.Moves())
	if eco == nil {
		return nil
	}
	return &domain.Opening{ECO: eco.Code(), Name: eco.Title()}
}
