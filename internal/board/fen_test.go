package board

import "testing"

func TestFENRoundTrip(t *testing.T) {
	for _, fen := range testFENs {
		b, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		out := b.ToFEN()
		b2, err := ParseFEN(out)
		if err != nil {
			t.Fatalf("re-parse of %q: %v", out, err)
		}
		if b2.Key != b.Key {
			t.Errorf("%q: round-trip changed the key (%q)", fen, out)
		}
	}
}

func TestFENCastlingRights(t *testing.T) {
	b, err := ParseFEN(StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	want := SquareBB(A1) | SquareBB(H1) | SquareBB(A8) | SquareBB(H8)
	if b.CastleRooks != want {
		t.Errorf("start position castle rooks = %v, want corners", b.CastleRooks)
	}

	b, err = ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w Kq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	want = SquareBB(H1) | SquareBB(A8)
	if b.CastleRooks != want {
		t.Errorf("Kq castle rooks = %v, want h1+a8", b.CastleRooks)
	}
}

func TestFENShredderCastling(t *testing.T) {
	// Inner rooks named by file letter; classic letters would be ambiguous.
	b, err := ParseFEN("1r2k1r1/8/8/8/8/8/8/1R2K1R1 w GBgb - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	want := SquareBB(B1) | SquareBB(G1) | SquareBB(B8) | SquareBB(G8)
	if b.CastleRooks != want {
		t.Errorf("Shredder castle rooks = %v, want b/g files", b.CastleRooks)
	}

	out := b.ToFEN()
	b2, err := ParseFEN(out)
	if err != nil {
		t.Fatalf("re-parse of %q: %v", out, err)
	}
	if b2.CastleRooks != want {
		t.Errorf("%q: castle rooks lost in round trip", out)
	}
}

func TestFENErrors(t *testing.T) {
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR",      // too few fields
		"rnbqkbnr/pppppppp/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1", // seven ranks
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e9 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - x 1",
		"9/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"8/8/8/8/8/8/8/8 w - - 0 1", // no kings
	}
	for _, fen := range bad {
		if _, err := ParseFEN(fen); err == nil {
			t.Errorf("ParseFEN(%q) should fail", fen)
		}
	}
}

func TestParseUCIMove(t *testing.T) {
	b, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	m, err := b.ParseUCIMove("e1g1", false)
	if err != nil {
		t.Fatalf("classic castle parse: %v", err)
	}
	if m.Flag() != FlagCastleHSide || m.To() != H1 {
		t.Errorf("e1g1 = %v flag %d, want h-side castle targeting h1", m, m.Flag())
	}

	m, err = b.ParseUCIMove("e1h1", true)
	if err != nil {
		t.Fatalf("chess960 castle parse: %v", err)
	}
	if m.Flag() != FlagCastleHSide {
		t.Errorf("e1h1 = %v, want h-side castle", m)
	}

	if _, err := b.ParseUCIMove("e1e3", false); err == nil {
		t.Error("illegal king move accepted")
	}
	if _, err := b.ParseUCIMove("zz11", false); err == nil {
		t.Error("malformed move accepted")
	}
}

func TestPromotionParsing(t *testing.T) {
	b, err := ParseFEN("8/P3k3/8/8/8/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		s  string
		pt PieceType
	}{
		{"a7a8q", Queen}, {"a7a8r", Rook}, {"a7a8b", Bishop}, {"a7a8n", Knight},
	} {
		m, err := b.ParseUCIMove(tc.s, false)
		if err != nil {
			t.Fatalf("%s: %v", tc.s, err)
		}
		if !m.IsPromotion() || m.PromotionPiece() != tc.pt {
			t.Errorf("%s parsed to %v", tc.s, m)
		}
	}

	if _, err := b.ParseUCIMove("a7a8", false); err == nil {
		t.Error("promotion without a piece letter accepted")
	}
}
