//go:build e2e

package e2e_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// TestReviewFlowWithCache runs a review against a fixture with known lint
// findings, checks the result lands in Redis, and resubmits the same
// commit to hit the cache.
func TestReviewFlowWithCache(t *testing.T) {
	st := newStack(t)

	repoDir := writeFixtureRepo(t, map[string]string{
		"utils.js": "var count = 0;\n" +
			"\n" +
			"function bump(step) {\n" +
			"  if (step == undefined) {\n" +
			"    step = 1;\n" +
			"  }\n" +
			"  count = count + step;\n" +
			"  return count;\n" +
			"}\n" +
			"\n" +
			"module.exports = { bump };\n",
	})

	created := postJSON(t, st.baseURL+"/api/review", domain.ReviewRequest{RepoURL: repoDir})
	reviewID, _ := created["review_id"].(string)
	require.NotEmpty(t, reviewID)
	t.Logf("submitted review %s", reviewID)

	first := awaitJob(t, st.baseURL+"/api/review/"+reviewID, string(domain.ReviewStatusCompleted))
	results, _ := first["results"].([]any)
	require.NotEmpty(t, results, "the checkers should flag var usage in the fixture")
	require.Empty(t, first["suggestions"], "no model client is wired, so no suggestions are produced")
	t.Logf("review finished with %d diagnostics", len(results))

	// The completed review is written to the cache after the status flips,
	// so poll for the key.
	ctx := context.Background()
	var cachedKey string
	require.Eventually(t, func() bool {
		keys, err := st.rdb.Keys(ctx, "review_cache:*").Result()
		if err != nil || len(keys) != 1 {
			return false
		}
		cachedKey = keys[0]
		return true
	}, 10*time.Second, pollInterval, "completed review never reached the cache")
	t.Logf("review cached under %s", cachedKey)

	resubmit := postJSON(t, st.baseURL+"/api/review", domain.ReviewRequest{RepoURL: repoDir})
	secondID, _ := resubmit["review_id"].(string)
	require.NotEmpty(t, secondID)
	require.NotEqual(t, reviewID, secondID)

	second := awaitJob(t, st.baseURL+"/api/review/"+secondID, string(domain.ReviewStatusCompleted))
	require.Equal(t, first["results"], second["results"])
	t.Log("resubmission completed from the cache with identical results")
}
