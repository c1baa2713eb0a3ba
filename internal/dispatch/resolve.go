package dispatch

import "github.com/mj1618/uibridge/internal/model"

// score orders click candidates: containment first, then larger overlap,
// then smaller edge distance.
type score struct {
	tier  int
	value float64
}

func (s score) less(o score) bool {
	if s.tier != o.tier {
		return s.tier < o.tier
	}
	return s.value < o.value
}

func clickScore(candidate, target model.Rect) score {
	if candidate.Contains(target) {
		return score{tier: 0}
	}
	if area := candidate.IntersectionArea(target); area > 0 {
		return score{tier: 1, value: -float64(area)}
	}
	return score{tier: 2, value: candidate.EdgeDistance(target)}
}

// ResolveClickTarget returns the clickable, enabled node of root closest to
// target. Ties go to the node met first in pre-order.
func ResolveClickTarget(root *model.GenericElement, target model.Rect) (*model.GenericElement, bool) {
	var best *model.GenericElement
	var bestScore score
	model.Walk(root, func(el *model.GenericElement, _ int) bool {
		if !el.CanClick() {
			return true
		}
		s := clickScore(el.Bounds, target)
		if best == nil || s.less(bestScore) {
			best, bestScore = el, s
		}
		return true
	})
	return best, best != nil
}
