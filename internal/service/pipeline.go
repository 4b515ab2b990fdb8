package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/soulmechanik/forems-portal/internal/domain"
)

// TokenStep is one transformation of a session token. Returning an error
// wrapping domain.ErrRejectToken ends the pipeline with the empty token.
type TokenStep func(ctx context.Context, t domain.Token) (domain.Token, error)

// Pipeline runs steps in order
type Pipeline []TokenStep

// Run applies every step to t. A rejection yields the empty token; any other
// error yields the input token unchanged.
func (p Pipeline) Run(ctx context.Context, t domain.Token) (domain.Token, error) {
	cur := t
	for _, step := range p {
		next, err := step(ctx, cur)
		if err != nil {
			if errors.Is(err, domain.ErrRejectToken) {
				return domain.Token{}, err
			}
			return t, err
		}
		cur = next
	}
	return cur, nil
}

// reject builds a terminal step error carrying kind
func reject(kind error) error {
	return fmt.Errorf("%w: %w", domain.ErrRejectToken, kind)
}
