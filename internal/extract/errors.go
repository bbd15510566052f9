package extract

import (
	"errors"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/luminous-energy/plant-cli/pkg/claude"
)

// Terminal extraction failures. Callers surface these distinctly: too-large
// documents need manual entry, rate/quota failures need a later retry.
var (
	ErrPayloadTooLarge = eris.New("extract: document too large, enter dates manually")
	ErrRateLimited     = eris.New("extract: upstream rate limited")
	ErrQuotaExhausted  = eris.New("extract: upstream quota exhausted")
	ErrUnsupportedType = eris.New("extract: unsupported document type")
)

// classifyCallError maps an upstream call failure onto the extraction
// taxonomy. 429 and 402 become terminal sentinels; everything else passes
// through and is treated as retryable by the caller.
func classifyCallError(err error) error {
	switch claude.StatusCode(err) {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExhausted
	}
	return err
}

// retryable reports whether a classified call error is worth another
// attempt. Only the rate/quota sentinels short-circuit; transient upstream
// failures and anything unclassified get the full retry budget.
func retryable(err error) bool {
	return !errors.Is(err, ErrRateLimited) && !errors.Is(err, ErrQuotaExhausted)
}
