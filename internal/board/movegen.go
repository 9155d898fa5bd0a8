package board

// Move generation. All generators emit fully legal moves. The strategy
// follows the usual pin-mask construction: a candidate is known legal unless
// its mover is pinned, it is a king move, or it is an en passant capture;
// those three cases are verified explicitly.

// GenerateLegalMoves appends every legal move to the list.
func (b *BoardState) GenerateLegalMoves(ml *MoveList) {
	b.genMoves(ml, true, true)
}

// GenerateLoudMoves appends captures (including en passant) and all
// promotions, including under-promotions.
func (b *BoardState) GenerateLoudMoves(ml *MoveList) {
	b.genMoves(ml, true, false)
}

// GenerateQuietMoves appends non-captures and non-promotions.
func (b *BoardState) GenerateQuietMoves(ml *MoveList) {
	b.genMoves(ml, false, true)
}

// HasLegalMoves returns true if the side to move has at least one legal move.
func (b *BoardState) HasLegalMoves() bool {
	var ml MoveList
	b.GenerateLegalMoves(&ml)
	return ml.Len() > 0
}

// IsLegal reports whether m is legal in this position by membership in the
// generated move set. Used to vet GUI moves and TT moves; the search relies
// on generation being sound instead.
func (b *BoardState) IsLegal(m Move) bool {
	var ml MoveList
	b.GenerateLegalMoves(&ml)
	return ml.Contains(m)
}

func (b *BoardState) genMoves(ml *MoveList, loud, quiet bool) {
	us := b.SideToMove
	them := us.Other()
	ksq := b.KingSq(us)
	checkers := b.CheckersBB()
	pinned := b.PinnedPieces(us)

	b.genKingMoves(ml, ksq, loud, quiet)

	// With two checkers only the king can move.
	if checkers.Multiple() {
		return
	}

	captureMask := b.Occupied[them]
	quietMask := ^b.AllOccupied
	if checkers != 0 {
		// Single checker: capture it or block the ray (sliders only).
		csq := checkers.LSB()
		captureMask = checkers
		quietMask = Between(ksq, csq)
	} else if quiet {
		b.genCastlingMoves(ml, ksq)
	}

	b.genPawnMoves(ml, ksq, pinned, captureMask, quietMask, loud, quiet)

	for pt := Knight; pt <= Queen; pt++ {
		pieces := b.PieceBB(pt, us)
		for pieces != 0 {
			from := pieces.PopLSB()
			attacks := PieceAttacks(pt, from, b.AllOccupied)
			isPinned := pinned.IsSet(from)

			if loud {
				targets := attacks & captureMask
				for targets != 0 {
					to := targets.PopLSB()
					if !isPinned || Aligned(ksq, from, to) {
						ml.Add(NewMove(from, to, FlagCapture))
					}
				}
			}
			if quiet {
				targets := attacks & quietMask
				for targets != 0 {
					to := targets.PopLSB()
					if !isPinned || Aligned(ksq, from, to) {
						ml.Add(NewMove(from, to, FlagQuiet))
					}
				}
			}
		}
	}
}

// genKingMoves emits king steps to squares that are not defended. The king is
// lifted off the occupancy so sliders see through its current square.
func (b *BoardState) genKingMoves(ml *MoveList, ksq Square, loud, quiet bool) {
	us := b.SideToMove
	them := us.Other()
	occ := b.AllOccupied &^ SquareBB(ksq)

	attacks := kingAttacks[ksq] &^ b.Occupied[us]
	for attacks != 0 {
		to := attacks.PopLSB()
		isCapture := b.Occupied[them].IsSet(to)
		if isCapture && !loud || !isCapture && !quiet {
			continue
		}
		if b.AttackersBy(to, them, occ) != 0 {
			continue
		}
		if isCapture {
			ml.Add(NewMove(ksq, to, FlagCapture))
		} else {
			ml.Add(NewMove(ksq, to, FlagQuiet))
		}
	}
}

func (b *BoardState) genPawnMoves(ml *MoveList, ksq Square, pinned, captureMask, quietMask Bitboard, loud, quiet bool) {
	us := b.SideToMove
	them := us.Other()
	pawns := b.PieceBB(Pawn, us)
	empty := ^b.AllOccupied
	enemies := b.Occupied[them]

	var push1, push2, attackL, attackR Bitboard
	var promoRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promoRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promoRank = Rank1
		pushDir = -8
	}

	emit := func(from, to Square, flag MoveFlag) {
		if !pinned.IsSet(from) || Aligned(ksq, from, to) {
			ml.Add(NewMove(from, to, flag))
		}
	}
	emitPromotions := func(from, to Square, capture bool) {
		base := FlagKnightPromotion
		if capture {
			base = FlagKnightPromotionCapture
		}
		for i := MoveFlag(0); i < 4; i++ {
			emit(from, to, base+i)
		}
	}

	if quiet {
		targets := push1 & ^promoRank & quietMask
		for targets != 0 {
			to := targets.PopLSB()
			emit(Square(int(to)-pushDir), to, FlagQuiet)
		}

		targets = push2 & quietMask
		for targets != 0 {
			to := targets.PopLSB()
			emit(Square(int(to)-2*pushDir), to, FlagPawnDoubleMove)
		}
	}

	if loud {
		targets := attackL & ^promoRank & captureMask
		for targets != 0 {
			to := targets.PopLSB()
			emit(Square(int(to)-pushDir+1), to, FlagCapture)
		}
		targets = attackR & ^promoRank & captureMask
		for targets != 0 {
			to := targets.PopLSB()
			emit(Square(int(to)-pushDir-1), to, FlagCapture)
		}

		// Promotions, capturing and not. Push promotions count as loud but
		// still have to satisfy the block mask when in check.
		targets = push1 & promoRank & quietMask
		for targets != 0 {
			to := targets.PopLSB()
			emitPromotions(Square(int(to)-pushDir), to, false)
		}
		targets = attackL & promoRank & captureMask
		for targets != 0 {
			to := targets.PopLSB()
			emitPromotions(Square(int(to)-pushDir+1), to, true)
		}
		targets = attackR & promoRank & captureMask
		for targets != 0 {
			to := targets.PopLSB()
			emitPromotions(Square(int(to)-pushDir-1), to, true)
		}

		// En passant is rare and tricky (discovered checks along the rank),
		// so every candidate gets the full legality simulation.
		if b.EnPassant != NoSquare {
			candidates := pawnAttacks[them][b.EnPassant] & pawns
			for candidates != 0 {
				from := candidates.PopLSB()
				if b.epCaptureLegal(from, b.EnPassant, us) {
					ml.Add(NewMove(from, b.EnPassant, FlagEnPassant))
				}
			}
		}
	}
}

// genCastlingMoves emits castling for every remaining castle rook of the side
// to move. Both transit paths must be clear of other pieces and the king's
// path free of attacks. Only called when not in check.
func (b *BoardState) genCastlingMoves(ml *MoveList, ksq Square) {
	us := b.SideToMove
	them := us.Other()

	rooks := b.CastleRooks & b.Occupied[us]
	for rooks != 0 {
		rsq := rooks.PopLSB()

		flag := FlagCastleASide
		if rsq.File() > ksq.File() {
			flag = FlagCastleHSide
		}
		m := NewMove(ksq, rsq, flag)
		kingTo := m.CastleKingTo(us)
		rookTo := m.CastleRookTo(us)

		// Transit squares must be empty apart from the two moving pieces.
		transit := Between(ksq, kingTo) | SquareBB(kingTo) |
			Between(rsq, rookTo) | SquareBB(rookTo)
		blockers := b.AllOccupied &^ SquareBB(ksq) &^ SquareBB(rsq)
		if transit&blockers != 0 {
			continue
		}

		// The king's path, destination included, must not be attacked. The
		// castling rook is lifted so it cannot shield a rank attack.
		occ := b.AllOccupied &^ SquareBB(rsq)
		kingPath := Between(ksq, kingTo) | SquareBB(kingTo)
		attacked := false
		for path := kingPath; path != 0; {
			if b.AttackersBy(path.PopLSB(), them, occ) != 0 {
				attacked = true
				break
			}
		}
		if !attacked {
			ml.Add(m)
		}
	}
}
