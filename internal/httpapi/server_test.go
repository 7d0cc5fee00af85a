package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/haus/internal/httpapi"
	"github.com/MarkoPoloResearchLab/haus/internal/testkit"
	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/MarkoPoloResearchLab/haus/pkg/reels"
	"github.com/MarkoPoloResearchLab/haus/pkg/roulette"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testSigningKey = "test-signing-key"
	testIssuer     = "haus-test"
)

type apiFixture struct {
	harness      *testkit.Harness
	router       *gin.Engine
	serviceToken string
	adminToken   string
}

type fixedResolver struct{}

func (fixedResolver) Resolve(string, int64) (roulette.Outcome, error) {
	position := redPosition()
	return roulette.Outcome{Position: position, Choice: roulette.ChoiceRed, Seed: "ROUL-fixed"}, nil
}

func redPosition() int {
	for position := 0; position <= 36; position++ {
		if roulette.ChoiceForPosition(position) == roulette.ChoiceRed {
			return position
		}
	}
	return -1
}

func newAPIFixture(test *testing.T) *apiFixture {
	test.Helper()
	harness := testkit.New(test)

	rounds, err := roulette.NewService(harness.Store.Rounds(), harness.Wallet, roulette.WithoutTimers(), roulette.WithResolver(fixedResolver{}))
	require.NoError(test, err)
	test.Cleanup(rounds.Close)
	pots, err := reels.NewService(harness.Store.Reels(), harness.Wallet)
	require.NoError(test, err)
	draws, err := lottery.NewService(harness.Store.Lottery(), harness.Wallet)
	require.NoError(test, err)
	prizeService, err := prizes.NewService(harness.Store.Prizes(), harness.Wallet)
	require.NoError(test, err)

	now := func() time.Time { return time.Unix(harness.Clock.Now(), 0) }
	authenticator, err := httpapi.NewAuthenticator(testSigningKey, testIssuer, now)
	require.NoError(test, err)

	router, err := httpapi.NewRouter(httpapi.Config{RequestTimeout: time.Second}, httpapi.Services{
		Wallet:   harness.Wallet,
		Roulette: rounds,
		Reels:    pots,
		Lottery:  draws,
		Prizes:   prizeService,
	}, authenticator, nil)
	require.NoError(test, err)

	serviceToken, err := authenticator.Issue("bot", []string{httpapi.RoleService}, time.Hour)
	require.NoError(test, err)
	adminToken, err := authenticator.Issue("operator", []string{httpapi.RoleAdmin}, time.Hour)
	require.NoError(test, err)

	return &apiFixture{harness: harness, router: router, serviceToken: serviceToken, adminToken: adminToken}
}

func (fixture *apiFixture) do(test *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	test.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		encoded, err := json.Marshal(body)
		require.NoError(test, err)
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, request)
	return recorder
}

func decode(test *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	test.Helper()
	var payload map[string]any
	require.NoError(test, json.Unmarshal(recorder.Body.Bytes(), &payload), recorder.Body.String())
	return payload
}

func errorCode(test *testing.T, recorder *httptest.ResponseRecorder) string {
	test.Helper()
	payload := decode(test, recorder)
	errorBody, ok := payload["error"].(map[string]any)
	require.True(test, ok, recorder.Body.String())
	code, _ := errorBody["code"].(string)
	return code
}

func TestHealthzIsPublic(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)

	recorder := fixture.do(test, http.MethodGet, "/healthz", "", nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	require.Equal(test, "ok", decode(test, recorder)["status"])
}

func TestAuthRejectsMissingAndUnderprivilegedTokens(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)

	recorder := fixture.do(test, http.MethodGet, "/api/accounts/alice/balance", "", nil)
	require.Equal(test, http.StatusUnauthorized, recorder.Code)

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/alice/balance", "not-a-jwt", nil)
	require.Equal(test, http.StatusUnauthorized, recorder.Code)

	otherAuthenticator, err := httpapi.NewAuthenticator("another-key", testIssuer, nil)
	require.NoError(test, err)
	forged, err := otherAuthenticator.Issue("bot", []string{httpapi.RoleAdmin}, time.Hour)
	require.NoError(test, err)
	recorder = fixture.do(test, http.MethodGet, "/api/accounts/alice/balance", forged, nil)
	require.Equal(test, http.StatusUnauthorized, recorder.Code)

	recorder = fixture.do(test, http.MethodPost, "/api/accounts/alice/adjust", fixture.serviceToken, map[string]any{"delta": 100})
	require.Equal(test, http.StatusForbidden, recorder.Code)
	require.Equal(test, "forbidden", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/alice/balance", fixture.adminToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
}

func TestExpiredTokenIsRejected(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)

	fixture.harness.Clock.Advance(int64((2 * time.Hour).Seconds()))
	recorder := fixture.do(test, http.MethodGet, "/api/accounts/alice/balance", fixture.serviceToken, nil)
	require.Equal(test, http.StatusUnauthorized, recorder.Code)
}

func TestClaimsAndAdjustments(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)

	recorder := fixture.do(test, http.MethodPost, "/api/accounts/alice/claims/daily", fixture.serviceToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code, recorder.Body.String())
	claimed := decode(test, recorder)["balance"].(float64)
	require.Positive(test, claimed)

	recorder = fixture.do(test, http.MethodPost, "/api/accounts/alice/claims/daily", fixture.serviceToken, nil)
	require.Equal(test, http.StatusTooManyRequests, recorder.Code)
	payload := decode(test, recorder)
	require.Greater(test, payload["next_eligible_unix_utc"].(float64), float64(testkit.StartUnixUTC))

	recorder = fixture.do(test, http.MethodPost, "/api/accounts/alice/claims/monthly", fixture.serviceToken, nil)
	require.Equal(test, http.StatusBadRequest, recorder.Code)
	require.Equal(test, "invalid_claim_kind", errorCode(test, recorder))

	fixture.harness.Clock.Advance(5)
	recorder = fixture.do(test, http.MethodPost, "/api/accounts/alice/adjust", fixture.adminToken, map[string]any{"delta": 500, "reason": "event prize"})
	require.Equal(test, http.StatusOK, recorder.Code, recorder.Body.String())
	require.Equal(test, claimed+500, decode(test, recorder)["balance"].(float64))

	recorder = fixture.do(test, http.MethodPost, "/api/accounts/alice/adjust", fixture.adminToken, map[string]any{"delta": -1_000_000, "reason": "too much"})
	require.Equal(test, http.StatusConflict, recorder.Code)
	require.Equal(test, "insufficient_funds", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/alice/transactions?limit=10", fixture.serviceToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	transactions := decode(test, recorder)["transactions"].([]any)
	require.Len(test, transactions, 2)
	newest := transactions[0].(map[string]any)
	require.Equal(test, "manual_adjust", newest["kind"])
	require.Equal(test, "operator", newest["metadata"].(map[string]any)["actor"])

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/alice/transactions?limit=many", fixture.serviceToken, nil)
	require.Equal(test, http.StatusBadRequest, recorder.Code)

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/alice/reconcile", fixture.adminToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	require.Equal(test, true, decode(test, recorder)["consistent"])
}

func TestRoundLifecycleOverHTTP(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)
	fixture.harness.Fund(test, testkit.Account(test, "alice"), 5_000)

	recorder := fixture.do(test, http.MethodGet, "/api/scopes/lobby/round", fixture.serviceToken, nil)
	require.Equal(test, http.StatusNotFound, recorder.Code)
	require.Equal(test, "no_open_round", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodPost, "/api/scopes/lobby/rounds", fixture.serviceToken, map[string]any{"duration_seconds": 60, "opener": "alice"})
	require.Equal(test, http.StatusCreated, recorder.Code, recorder.Body.String())
	round := decode(test, recorder)
	roundID := round["round_id"].(string)
	require.Equal(test, "OPEN", round["status"])
	require.Equal(test, "#0001", round["label"])

	recorder = fixture.do(test, http.MethodPost, "/api/scopes/lobby/rounds", fixture.serviceToken, map[string]any{"opener": "alice"})
	require.Equal(test, http.StatusConflict, recorder.Code)
	require.Equal(test, "round_already_open", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodPost, "/api/rounds/"+roundID+"/bets", fixture.serviceToken, map[string]any{"account": "alice", "choice": "purple", "stake": 100})
	require.Equal(test, http.StatusBadRequest, recorder.Code)
	require.Equal(test, "invalid_choice", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodPost, "/api/rounds/"+roundID+"/bets", fixture.serviceToken, map[string]any{"account": "alice", "choice": "red", "stake": 1_000})
	require.Equal(test, http.StatusCreated, recorder.Code, recorder.Body.String())

	recorder = fixture.do(test, http.MethodGet, "/api/scopes/lobby/round", fixture.serviceToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	status := decode(test, recorder)
	require.Equal(test, float64(1), status["bet_count"])
	require.Equal(test, float64(1_000), status["pool"])

	recorder = fixture.do(test, http.MethodPost, "/api/rounds/"+roundID+"/resolve", fixture.serviceToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code, recorder.Body.String())
	settlement := decode(test, recorder)
	require.Equal(test, "red", settlement["round"].(map[string]any)["outcome"])
	payouts := settlement["payouts"].([]any)
	require.Len(test, payouts, 1)
	require.Equal(test, float64(2_000), payouts[0].(map[string]any)["amount"])

	recorder = fixture.do(test, http.MethodPost, "/api/rounds/"+roundID+"/resolve", fixture.serviceToken, nil)
	require.Equal(test, http.StatusConflict, recorder.Code)
	require.Equal(test, "round_not_open", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/alice/balance", fixture.serviceToken, nil)
	require.Equal(test, float64(6_000), decode(test, recorder)["balance"])
}

func TestCancelRoundRequiresAdmin(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)
	fixture.harness.Fund(test, testkit.Account(test, "bob"), 1_000)

	recorder := fixture.do(test, http.MethodPost, "/api/scopes/lobby/rounds", fixture.serviceToken, map[string]any{"opener": "bob"})
	require.Equal(test, http.StatusCreated, recorder.Code)
	roundID := decode(test, recorder)["round_id"].(string)
	recorder = fixture.do(test, http.MethodPost, "/api/rounds/"+roundID+"/bets", fixture.serviceToken, map[string]any{"account": "bob", "choice": "black", "stake": 400})
	require.Equal(test, http.StatusCreated, recorder.Code)

	recorder = fixture.do(test, http.MethodPost, "/api/rounds/"+roundID+"/cancel", fixture.serviceToken, nil)
	require.Equal(test, http.StatusForbidden, recorder.Code)

	recorder = fixture.do(test, http.MethodPost, "/api/rounds/"+roundID+"/cancel", fixture.adminToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code, recorder.Body.String())
	require.Equal(test, "CANCELLED", decode(test, recorder)["round"].(map[string]any)["status"])

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/bob/balance", fixture.serviceToken, nil)
	require.Equal(test, float64(1_000), decode(test, recorder)["balance"])
}

func TestSpinAndPot(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)
	fixture.harness.Fund(test, testkit.Account(test, "carol"), 2_000)

	recorder := fixture.do(test, http.MethodGet, "/api/scopes/arcade/pot", fixture.serviceToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	require.Equal(test, float64(1_000), decode(test, recorder)["amount"])

	recorder = fixture.do(test, http.MethodPost, "/api/scopes/arcade/spins", fixture.serviceToken, map[string]any{"account": "carol", "count": 2})
	require.Equal(test, http.StatusOK, recorder.Code, recorder.Body.String())
	result := decode(test, recorder)
	require.Len(test, result["spins"].([]any), 2)
	require.Equal(test, float64(1_000), result["total_stake"])
	pot := result["pot"].(map[string]any)
	require.GreaterOrEqual(test, pot["amount"].(float64), pot["floor"].(float64))
	require.Equal(test, float64(2_000)-1_000+result["total_payout"].(float64), result["balance"])

	recorder = fixture.do(test, http.MethodPost, "/api/scopes/arcade/spins", fixture.serviceToken, map[string]any{"account": "carol", "count": 50})
	require.Equal(test, http.StatusBadRequest, recorder.Code)
	require.Equal(test, "invalid_spin_count", errorCode(test, recorder))
}

func TestLotteryDrawAndPrizeClaim(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)
	fixture.harness.Fund(test, testkit.Account(test, "dave"), 20_000)

	recorder := fixture.do(test, http.MethodPost, "/api/lottery/current/draw", fixture.adminToken, nil)
	require.Equal(test, http.StatusConflict, recorder.Code)
	require.Equal(test, "no_entries", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodPost, "/api/lottery/current/tickets", fixture.serviceToken, map[string]any{"account": "dave", "count": 2})
	require.Equal(test, http.StatusCreated, recorder.Code, recorder.Body.String())
	purchase := decode(test, recorder)
	require.Equal(test, float64(2), purchase["tickets"])
	require.Equal(test, float64(0), purchase["balance"])

	recorder = fixture.do(test, http.MethodGet, "/api/lottery/current?account=dave", fixture.serviceToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	require.Equal(test, float64(2), decode(test, recorder)["account_tickets"])

	recorder = fixture.do(test, http.MethodPost, "/api/lottery/current/draw", fixture.serviceToken, nil)
	require.Equal(test, http.StatusForbidden, recorder.Code)

	recorder = fixture.do(test, http.MethodPost, "/api/lottery/current/draw", fixture.adminToken, nil)
	require.Equal(test, http.StatusCreated, recorder.Code, recorder.Body.String())
	draw := decode(test, recorder)
	require.Equal(test, "dave", draw["winner"])
	prizeID := draw["prize_id"].(string)

	recorder = fixture.do(test, http.MethodPost, "/api/lottery/current/draw", fixture.adminToken, nil)
	require.Equal(test, http.StatusConflict, recorder.Code)
	require.Equal(test, "already_drawn", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodPost, "/api/prizes/"+prizeID+"/claim-token", fixture.serviceToken, map[string]any{"account": "erin"})
	require.Equal(test, http.StatusForbidden, recorder.Code)
	require.Equal(test, "not_winner", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodPost, "/api/prizes/"+prizeID+"/claim-token", fixture.serviceToken, map[string]any{"account": "dave"})
	require.Equal(test, http.StatusCreated, recorder.Code, recorder.Body.String())
	token := decode(test, recorder)["token"].(string)

	recorder = fixture.do(test, http.MethodPost, "/api/claims", fixture.serviceToken, map[string]any{"token": token, "identity": "DaveTheWinner"})
	require.Equal(test, http.StatusCreated, recorder.Code, recorder.Body.String())
	entry := decode(test, recorder)
	require.Equal(test, "DaveTheWinner", entry["identity"].(map[string]any)["username"])
	require.Equal(test, true, entry["created"])

	recorder = fixture.do(test, http.MethodPost, "/api/prizes/"+prizeID+"/claims", fixture.serviceToken, map[string]any{"account": "dave", "identity": "DaveTheWinner"})
	require.Equal(test, http.StatusOK, recorder.Code, recorder.Body.String())
	require.Equal(test, false, decode(test, recorder)["created"])

	recorder = fixture.do(test, http.MethodGet, "/api/claims/next", fixture.adminToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	entryID := decode(test, recorder)["entry_id"].(string)

	recorder = fixture.do(test, http.MethodPost, "/api/claims/"+entryID+"/fulfill", fixture.adminToken, map[string]any{"staff_note": "sent"})
	require.Equal(test, http.StatusOK, recorder.Code, recorder.Body.String())
	require.Equal(test, "fulfilled", decode(test, recorder)["status"])

	recorder = fixture.do(test, http.MethodGet, "/api/claims/next", fixture.adminToken, nil)
	require.Equal(test, http.StatusNotFound, recorder.Code)
	require.Equal(test, "queue_empty", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/dave/prizes", fixture.serviceToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	owned := decode(test, recorder)["prizes"].([]any)
	require.Len(test, owned, 1)
	require.Equal(test, "fulfilled", owned[0].(map[string]any)["status"])
}

func TestWithdrawalReview(test *testing.T) {
	test.Parallel()
	fixture := newAPIFixture(test)
	fixture.harness.Fund(test, testkit.Account(test, "frank"), 25_000)

	recorder := fixture.do(test, http.MethodPost, "/api/withdrawals", fixture.serviceToken, map[string]any{"account": "frank", "coins": 20_000, "identity": " "})
	require.Equal(test, http.StatusBadRequest, recorder.Code)
	require.Equal(test, "invalid_identity", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodPost, "/api/withdrawals", fixture.serviceToken, map[string]any{"account": "frank", "coins": 20_000, "identity": "FrankGifts"})
	require.Equal(test, http.StatusCreated, recorder.Code, recorder.Body.String())
	requestID := decode(test, recorder)["request_id"].(string)

	recorder = fixture.do(test, http.MethodGet, "/api/withdrawals", fixture.adminToken, nil)
	require.Equal(test, http.StatusOK, recorder.Code)
	require.Len(test, decode(test, recorder)["withdrawals"].([]any), 1)

	recorder = fixture.do(test, http.MethodPost, "/api/withdrawals/"+requestID+"/approve", fixture.adminToken, map[string]any{"coins": 20_000})
	require.Equal(test, http.StatusOK, recorder.Code, recorder.Body.String())
	approved := decode(test, recorder)
	require.Equal(test, "approved", approved["status"])
	require.Equal(test, "operator", approved["reviewer"])
	require.NotEmpty(test, approved["prize_id"])

	recorder = fixture.do(test, http.MethodPost, "/api/withdrawals/"+requestID+"/reject", fixture.adminToken, nil)
	require.Equal(test, http.StatusConflict, recorder.Code)
	require.Equal(test, "already_reviewed", errorCode(test, recorder))

	recorder = fixture.do(test, http.MethodGet, "/api/accounts/frank/balance", fixture.serviceToken, nil)
	require.Equal(test, float64(5_000), decode(test, recorder)["balance"])
}
