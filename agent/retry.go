package agent

import (
	"context"
	"errors"
)

// ErrNoCandidates : la politique n'a aucune tentative à effectuer.
var ErrNoCandidates = errors.New("no candidates to try")

// RetryPolicy décrit une boucle de tentatives sur une liste ordonnée de candidats.
//
// Attempts <= 0 signifie une tentative par candidat. Rotate, si présent,
// réordonne les candidats pour chaque tentative (numérotée à partir de 1).
// Abort arrête immédiatement la boucle pour certaines erreurs.
type RetryPolicy[C any] struct {
	Candidates []C
	Attempts   int
	Rotate     func(candidates []C, attempt int) []C
	Abort      func(err error) bool
	OnFailure  func(attempt int, err error)
}

// Retry exécute op jusqu'au premier succès et renvoie la dernière erreur sinon.
func Retry[C, R any](ctx context.Context, p RetryPolicy[C], op func(ctx context.Context, attempt int, candidates []C) (R, error)) (R, error) {
	var zero R
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = len(p.Candidates)
	}
	if attempts == 0 {
		return zero, ErrNoCandidates
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		candidates := p.Candidates
		if p.Rotate != nil {
			candidates = p.Rotate(candidates, attempt)
		}
		res, err := op(ctx, attempt, candidates)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}
		if p.Abort != nil && p.Abort(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

// RotateLeft décale la liste de (attempt-1) mod n : chaque tentative
// commence par un candidat différent. La liste d'origine n'est pas modifiée.
func RotateLeft[C any](list []C, attempt int) []C {
	if len(list) == 0 {
		return list
	}
	k := (attempt - 1) % len(list)
	if k < 0 {
		k += len(list)
	}
	out := make([]C, 0, len(list))
	out = append(out, list[k:]...)
	return append(out, list[:k]...)
}
