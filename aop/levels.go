package aop

import (
	"fmt"
	"strings"
)

// BiologicalLevel is one of the six levels of biological organization,
// ordered from molecular (lowest) to population (highest).
type BiologicalLevel string

const (
	LevelMolecular  BiologicalLevel = "molecular"
	LevelCellular   BiologicalLevel = "cellular"
	LevelTissue     BiologicalLevel = "tissue"
	LevelOrgan      BiologicalLevel = "organ"
	LevelOrganism   BiologicalLevel = "organism"
	LevelPopulation BiologicalLevel = "population"
)

// RankUnknown is the sentinel rank for an unrecognized level name.
const RankUnknown = -1

var levelRanks = map[BiologicalLevel]int{
	LevelMolecular:  0,
	LevelCellular:   1,
	LevelTissue:     2,
	LevelOrgan:      3,
	LevelOrganism:   4,
	LevelPopulation: 5,
}

// Levels lists the six biological levels in ascending rank order.
func Levels() []BiologicalLevel {
	return []BiologicalLevel{
		LevelMolecular, LevelCellular, LevelTissue,
		LevelOrgan, LevelOrganism, LevelPopulation,
	}
}

// Rank maps the level to its position 0..5 in the hierarchy, or RankUnknown
// for an unrecognized level name.
func (l BiologicalLevel) Rank() int {
	if r, ok := levelRanks[l]; ok {
		return r
	}
	return RankUnknown
}

// largeJumpThreshold is the rank distance beyond which a transition is
// flagged as skipping intermediate levels. Such transitions remain valid;
// the reason string is advisory only.
const largeJumpThreshold = 2

// ValidateTransition checks that a relationship from source to target
// follows the biological level progression rule: the target level must be
// the same as or higher than the source level. Backward transitions are
// invalid and must be dropped. Transitions that skip more than two levels
// are valid but carry an advisory reason for logging.
//
// The function is pure: for every pair of events it returns a deterministic
// (valid, reason) pair.
func ValidateTransition(source, target *KeyEvent) (bool, string) {
	srcRank := source.BiologicalLevel.Rank()
	tgtRank := target.BiologicalLevel.Rank()

	if srcRank == RankUnknown || tgtRank == RankUnknown {
		return false, fmt.Sprintf("Unknown biological level: %s or %s",
			source.BiologicalLevel, target.BiologicalLevel)
	}

	if tgtRank < srcRank {
		return false, fmt.Sprintf("FORBIDDEN backward progression: %s (level %d) → %s (level %d)",
			source.BiologicalLevel, srcRank, target.BiologicalLevel, tgtRank)
	}

	if tgtRank-srcRank > largeJumpThreshold {
		return true, fmt.Sprintf("Large level jump: %s → %s (skips %d intermediate levels)",
			source.BiologicalLevel, target.BiologicalLevel, tgtRank-srcRank-1)
	}

	return true, "Valid progression"
}

const largeJumpPrefix = "Large level jump"

// IsLargeJump reports whether a reason returned by ValidateTransition is the
// advisory large-jump variant.
func IsLargeJump(reason string) bool {
	return strings.HasPrefix(reason, largeJumpPrefix)
}
