package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/evaluate"
	"github.com/stocklens/stocklens/internal/core/fetch"
)

// Score deltas applied per check outcome. The running score is clamped to
// [0, 1] at persistence time.
const (
	liveBonus       = 0.25
	validBonus      = 0.05
	notFoundPenalty = 0.30
	blockPenalty    = 0.05
	noisePenalty    = 0.02
)

// reasonBlocked covers block markers on an otherwise successful status,
// where an http_2xx reason would read as a contradiction.
const reasonBlocked = "blocked"

// verdict is one candidate's resolved outcome before persistence.
type verdict struct {
	status      core.CandidateStatus
	score       float64
	reason      string
	evidence    core.Evidence
	hasEvidence bool
}

// classifyResponse turns a fetched response into a verdict. 404/410 is
// terminal; blocked responses and every other non-2xx status are transient;
// a 2xx body goes through the evaluator and the per-retailer live rule.
func (c *CandidateChecker) classifyResponse(slug string, candidate core.Candidate, res *fetch.Result) verdict {
	switch {
	case res.StatusCode == 404 || res.StatusCode == 410:
		return verdict{
			status: core.StatusInvalid,
			score:  candidate.Score - notFoundPenalty,
			reason: fmt.Sprintf("http_%d", res.StatusCode),
		}

	case res.Blocked:
		reason := fmt.Sprintf("http_%d", res.StatusCode)
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			reason = reasonBlocked
		}
		return verdict{
			status: core.StatusUnknown,
			score:  candidate.Score - blockPenalty,
			reason: reason,
		}

	case res.StatusCode >= 200 && res.StatusCode < 300:
		ev := c.evaluator().Evaluate(res.URL, res.Body)
		switch {
		case c.evaluator().IsLive(slug, ev):
			return verdict{
				status:      core.StatusLive,
				score:       candidate.Score + liveBonus,
				reason:      ev.Encode("live"),
				evidence:    ev,
				hasEvidence: true,
			}
		case c.evaluator().IsPlausible(ev):
			return verdict{
				status:      core.StatusValid,
				score:       candidate.Score + validBonus,
				reason:      ev.Encode("valid"),
				evidence:    ev,
				hasEvidence: true,
			}
		default:
			return verdict{
				status:      core.StatusUnknown,
				score:       candidate.Score - blockPenalty,
				reason:      ev.Encode("page"),
				evidence:    ev,
				hasEvidence: true,
			}
		}

	default:
		return verdict{
			status: core.StatusUnknown,
			score:  candidate.Score - blockPenalty,
			reason: fmt.Sprintf("http_%d", res.StatusCode),
		}
	}
}

// classifyFetchError maps transport failures onto the network taxonomy:
// DNS no-such-host takes the not-found penalty, timeouts and resets take
// the blocking penalty, everything else is transient noise.
func classifyFetchError(candidate core.Candidate, err error) verdict {
	reason, class := networkReason(err)

	penalty := noisePenalty
	switch class {
	case networkNotFound:
		penalty = notFoundPenalty
	case networkBlocked:
		penalty = blockPenalty
	}

	return verdict{
		status: core.StatusUnknown,
		score:  candidate.Score - penalty,
		reason: reason,
	}
}

type networkClass int

const (
	networkOther networkClass = iota
	networkNotFound
	networkBlocked
)

// networkReason names a transport failure in errno style and buckets it
// for scoring.
func networkReason(err error) (string, networkClass) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return "ENOTFOUND", networkNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return "ETIMEDOUT", networkBlocked
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT", networkBlocked
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return "ECONNRESET", networkBlocked
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "ECONNREFUSED", networkOther
	}

	return "network_error", networkOther
}

func (c *CandidateChecker) evaluator() *evaluate.Evaluator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Evaluator == nil {
		c.Evaluator = evaluate.New()
	}
	return c.Evaluator
}
