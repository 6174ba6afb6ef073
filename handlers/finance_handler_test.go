package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anjiri1684/fee_ledger/cache"
	"github.com/anjiri1684/fee_ledger/handlers"
	"github.com/anjiri1684/fee_ledger/jobs"
	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/routes"
	"github.com/anjiri1684/fee_ledger/services"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/anjiri1684/fee_ledger/store/storetest"
	"github.com/anjiri1684/fee_ledger/utils"
	"github.com/anjiri1684/fee_ledger/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	app    *fiber.App
	store  *store.Memory
	faults *storetest.Conflicts
	biz    uuid.UUID
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := store.NewMemory()
	biz := s.AddBusiness(models.Business{Name: "Hillside Academy", IsActive: true})
	refs, err := utils.NewReferenceGenerator(1)
	require.NoError(t, err)

	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	faults := storetest.WithConflicts(s)
	deps := services.Deps{
		Store:  faults,
		Cache:  cache.NewMemory(),
		Logger: zap.NewNop(),
		Now:    func() time.Time { return now },
	}
	generator := services.NewFeeGenerator(deps, services.DefaultDueDay)
	sweeper := services.NewOverdueSweeper(deps)
	h := &handlers.FinanceHandler{
		Templates:    services.NewTemplateService(s, zap.NewNop()),
		Scholarships: services.NewScholarshipService(s, zap.NewNop()),
		Generator:    generator,
		Ledger:       services.NewPaymentLedger(deps, refs, services.LedgerOptions{MaxAttempts: 3, RecordTransactions: true}),
		Sweeper:      sweeper,
		Accounts:     services.NewAccountService(deps, time.Minute),
		Jobs:         jobs.NewRunner(faults, generator, sweeper, zap.NewNop(), 1),
		Hub:          websocket.NewHub(8),
		JWTSecret:    testSecret,
		Now:          func() time.Time { return now },
	}
	app := fiber.New()
	routes.FinanceRoutes(app, h, testSecret)
	return &testEnv{app: app, store: s, faults: faults, biz: biz.ID, token: signToken(t, jwt.MapClaims{"business_id": biz.ID.String()})}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	claims["user_id"] = uuid.NewString()
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func (e *testEnv) addStudent(t *testing.T, name string) uuid.UUID {
	t.Helper()
	st := &models.Student{BusinessID: e.biz, FullName: name, IsActive: true}
	require.NoError(t, e.store.CreateStudent(context.Background(), st))
	return st.ID
}

func (e *testEnv) call(t *testing.T, method, path string, body interface{}, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func (e *testEnv) createFee(t *testing.T, studentID uuid.UUID, amount string) string {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/api/v1/finance/fees", fiber.Map{
		"student_id": studentID.String(),
		"title":      "Books",
		"category":   "MATERIALS",
		"amount":     amount,
		"due_date":   "2026-11-01",
	}, e.token)
	require.Equal(t, http.StatusCreated, status, string(body))
	return decode(t, body)["id"].(string)
}

func TestPaymentFlowOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	feeID := e.createFee(t, e.addStudent(t, "Amina Otieno"), "500")

	status, body := e.call(t, http.MethodPost, "/api/v1/finance/fees/"+feeID+"/payments",
		fiber.Map{"amount": "200.00", "method": "CASH"}, e.token)
	require.Equal(t, http.StatusCreated, status, string(body))
	payment := decode(t, body)
	assert.Equal(t, "200.00", payment["amount"])
	assert.Contains(t, payment["receipt_number"], "RCP-")

	status, body = e.call(t, http.MethodGet, "/api/v1/finance/fees/"+feeID+"/balance", nil, e.token)
	require.Equal(t, http.StatusOK, status)
	balance := decode(t, body)
	assert.Equal(t, "PARTIAL", balance["status"])
	assert.Equal(t, "300.00", balance["remaining"])

	status, body = e.call(t, http.MethodGet, "/api/v1/finance/fees/"+feeID+"/payments", nil, e.token)
	require.Equal(t, http.StatusOK, status)
	var payments []map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payments))
	assert.Len(t, payments, 1)
}

func TestRecordPaymentErrors(t *testing.T) {
	e := newTestEnv(t)
	feeID := e.createFee(t, e.addStudent(t, "Brian Mwangi"), "500")

	tests := []struct {
		name   string
		path   string
		body   fiber.Map
		status int
	}{
		{"zero amount", "/api/v1/finance/fees/" + feeID + "/payments", fiber.Map{"amount": "0", "method": "CASH"}, http.StatusBadRequest},
		{"negative amount", "/api/v1/finance/fees/" + feeID + "/payments", fiber.Map{"amount": "-5", "method": "CASH"}, http.StatusBadRequest},
		{"unknown method", "/api/v1/finance/fees/" + feeID + "/payments", fiber.Map{"amount": "10", "method": "BITCOIN"}, http.StatusBadRequest},
		{"attribution too large", "/api/v1/finance/fees/" + feeID + "/payments", fiber.Map{"amount": "10", "method": "CASH", "school_amount": "11"}, http.StatusBadRequest},
		{"malformed fee id", "/api/v1/finance/fees/not-a-uuid/payments", fiber.Map{"amount": "10", "method": "CASH"}, http.StatusBadRequest},
		{"unknown fee", "/api/v1/finance/fees/" + uuid.NewString() + "/payments", fiber.Map{"amount": "10", "method": "CASH"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.call(t, http.MethodPost, tt.path, tt.body, e.token)
			assert.Equal(t, tt.status, status, string(body))
		})
	}

	_, body := e.call(t, http.MethodPost, "/api/v1/finance/fees/"+feeID+"/payments", fiber.Map{"amount": "0", "method": "CASH"}, e.token)
	assert.Equal(t, "amount", decode(t, body)["field"])
}

func TestRecordPaymentConflictIsRetryable(t *testing.T) {
	e := newTestEnv(t)
	feeID := e.createFee(t, e.addStudent(t, "Chao Wen"), "500")
	e.faults.Inject(10)

	status, body := e.call(t, http.MethodPost, "/api/v1/finance/fees/"+feeID+"/payments",
		fiber.Map{"amount": "100", "method": "CARD"}, e.token)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, true, decode(t, body)["retryable"])
}

func TestFinanceRoutesAreTenantScoped(t *testing.T) {
	e := newTestEnv(t)
	feeID := e.createFee(t, e.addStudent(t, "Dina Kamau"), "500")

	status, _ := e.call(t, http.MethodGet, "/api/v1/finance/fees/"+feeID, nil, "")
	assert.Equal(t, http.StatusBadRequest, status)

	noTenant := signToken(t, jwt.MapClaims{"role": "admin"})
	status, _ = e.call(t, http.MethodGet, "/api/v1/finance/fees/"+feeID, nil, noTenant)
	assert.Equal(t, http.StatusForbidden, status)

	other := signToken(t, jwt.MapClaims{"business_id": uuid.NewString()})
	status, _ = e.call(t, http.MethodGet, "/api/v1/finance/fees/"+feeID, nil, other)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.call(t, http.MethodGet, "/api/v1/finance/fees/"+feeID, nil, e.token)
	assert.Equal(t, http.StatusOK, status)
}

func TestVoidPaidFeeConflicts(t *testing.T) {
	e := newTestEnv(t)
	feeID := e.createFee(t, e.addStudent(t, "Esther Njeri"), "100")
	status, _ := e.call(t, http.MethodPost, "/api/v1/finance/fees/"+feeID+"/payments", fiber.Map{"amount": "100", "method": "CASH"}, e.token)
	require.Equal(t, http.StatusCreated, status)

	status, _ = e.call(t, http.MethodPost, "/api/v1/finance/fees/"+feeID+"/void", nil, e.token)
	assert.Equal(t, http.StatusConflict, status)
}

func TestGenerateFeesAndStats(t *testing.T) {
	e := newTestEnv(t)
	e.addStudent(t, "Faith Achieng")
	e.addStudent(t, "George Ouma")

	status, body := e.call(t, http.MethodPost, "/api/v1/finance/templates", fiber.Map{
		"name":       "Tuition",
		"category":   "TUITION",
		"amount":     "1000",
		"recurrence": "MONTHLY",
		"day_due":    5,
	}, e.token)
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = e.call(t, http.MethodPost, "/api/v1/finance/templates", fiber.Map{
		"name": "Tuition", "amount": "1000", "recurrence": "WEEKLY",
	}, e.token)
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = e.call(t, http.MethodPost, "/api/v1/finance/fees/generate", fiber.Map{"target_date": "2026-10-01"}, e.token)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.EqualValues(t, 2, decode(t, body)["generated_count"])

	status, body = e.call(t, http.MethodPost, "/api/v1/finance/fees/generate", fiber.Map{"target_date": "2026-10-01"}, e.token)
	require.Equal(t, http.StatusOK, status)
	second := decode(t, body)
	assert.EqualValues(t, 0, second["generated_count"])
	assert.EqualValues(t, 2, second["skipped_count"])

	status, body = e.call(t, http.MethodGet, "/api/v1/finance/stats?top=1", nil, e.token)
	require.Equal(t, http.StatusOK, status)
	stats := decode(t, body)
	assert.Equal(t, "2000.00", stats["total_charges"])
	assert.Equal(t, "2000.00", stats["total_overdue"])
	assert.Len(t, stats["top_debtors"], 1)

	status, body = e.call(t, http.MethodGet, "/api/v1/finance/fees?status=pending", nil, e.token)
	require.Equal(t, http.StatusOK, status)
	var fees []map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &fees))
	assert.Len(t, fees, 2)

	status, _ = e.call(t, http.MethodGet, "/api/v1/finance/fees?status=LOST", nil, e.token)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSweepOverdueEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.createFee(t, e.addStudent(t, "Hassan Ali"), "300")

	status, body := e.call(t, http.MethodPost, "/api/v1/finance/fees/sweep-overdue", nil, e.token)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.EqualValues(t, 0, decode(t, body)["updated_count"])

	status, body = e.call(t, http.MethodPost, "/api/v1/finance/fees/sweep-overdue", fiber.Map{"as_of": "2026-11-02"}, e.token)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.EqualValues(t, 1, decode(t, body)["updated_count"])
}

func TestExportDebtorsWorkbook(t *testing.T) {
	e := newTestEnv(t)
	e.createFee(t, e.addStudent(t, "Irene Wambui"), "750")
	e.createFee(t, e.addStudent(t, "James Kiptoo"), "250")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/finance/stats/debtors.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "debtors_")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Debtors")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Student ID", rows[0][0])
	assert.Equal(t, "Irene Wambui", rows[1][1])
	assert.Equal(t, "James Kiptoo", rows[2][1])
}

func TestListTransactionsAfterPayment(t *testing.T) {
	e := newTestEnv(t)
	feeID := e.createFee(t, e.addStudent(t, "Eli Mutua"), "500")

	status, body := e.call(t, http.MethodPost, "/api/v1/finance/fees/"+feeID+"/payments",
		fiber.Map{"amount": "200", "method": "CASH"}, e.token)
	require.Equal(t, http.StatusCreated, status, string(body))
	payment := decode(t, body)

	status, body = e.call(t, http.MethodGet, "/api/v1/finance/transactions", nil, e.token)
	require.Equal(t, http.StatusOK, status, string(body))
	var txns []map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &txns))
	require.Len(t, txns, 1)
	assert.Equal(t, "INCOME", txns[0]["type"])
	assert.Equal(t, payment["id"], txns[0]["payment_id"])

	other := signToken(t, jwt.MapClaims{"business_id": uuid.NewString()})
	status, body = e.call(t, http.MethodGet, "/api/v1/finance/transactions", nil, other)
	require.Equal(t, http.StatusOK, status)
	txns = nil
	require.NoError(t, json.Unmarshal(body, &txns))
	assert.Empty(t, txns)
}

func TestJobRunsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 2, 0, 0, 0, time.UTC)
	for i, kind := range []models.JobKind{models.JobFeeGeneration, models.JobOverdueSweep, models.JobFeeGeneration} {
		started := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, e.store.CreateJobRun(ctx, &models.JobRun{
			BusinessID: e.biz,
			Kind:       kind,
			TargetAt:   base,
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Succeeded:  i,
		}))
	}

	status, body := e.call(t, http.MethodGet, "/api/v1/finance/job-runs?limit=2", nil, e.token)
	require.Equal(t, http.StatusOK, status, string(body))
	var runs []map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "FEE_GENERATION", runs[0]["kind"])
	assert.EqualValues(t, 2, runs[0]["succeeded"])
	assert.Equal(t, "OVERDUE_SWEEP", runs[1]["kind"])
}
