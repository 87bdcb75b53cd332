package abc

// ID identifies a token or a node within one parse/transform pipeline.
// Zero is never handed out and means "no element".
type ID int

// IDGen hands out identities. A generator must be owned by a single
// pipeline; two parses sharing one would still get distinct IDs, but
// concurrent use is not supported.
type IDGen struct {
	last ID
}

func NewIDGen() *IDGen { return &IDGen{} }

func (g *IDGen) Next() ID {
	g.last++
	return g.last
}

// Token creates a fresh synthesized token.
func (g *IDGen) Token(kind TokenKind, text string) *Token {
	return &Token{Kind: kind, Text: text, ID: g.Next()}
}
