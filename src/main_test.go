package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"gigbook/src/config"
	"gigbook/src/db"
	"gigbook/src/lib"
	"gigbook/src/types"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB        *gorm.DB
	Mock      sqlmock.Sqlmock
	Token     *string
	Processor *fakeProcessor
}

const validSignature = "t=test,v1=valid"

type fakeProcessor struct {
	chargeCalls int
}

func (f *fakeProcessor) CreateAccount(ctx context.Context, email string, metadata map[string]string) (string, error) {
	return "acct_test_1", nil
}

func (f *fakeProcessor) CreateAccountLink(ctx context.Context, accountId string) (string, error) {
	return fmt.Sprintf("https://connect.example.com/onboard/%s", accountId), nil
}

func (f *fakeProcessor) GetAccount(ctx context.Context, accountId string) (*lib.ConnectedAccountState, error) {
	return &lib.ConnectedAccountState{
		AccountID:        accountId,
		DetailsSubmitted: true,
		PayoutsEnabled:   true,
	}, nil
}

func (f *fakeProcessor) CreateCharge(ctx context.Context, input *lib.CreateChargeInput) (*lib.ChargeIntent, error) {
	f.chargeCalls++
	return &lib.ChargeIntent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
}

func (f *fakeProcessor) GetBalance(ctx context.Context, accountId string) (float64, float64, error) {
	return 100, 25, nil
}

func (f *fakeProcessor) CreatePayout(ctx context.Context, accountId string, amount float64, currency string) (string, error) {
	return "po_test_1", nil
}

func (f *fakeProcessor) VerifyWebhook(payload []byte, sigHeader string) (*stripe.Event, error) {
	if sigHeader != validSignature {
		return nil, errors.New("signature verification failed")
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func authMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	parts := strings.Split(bearerToken, " ")
	if len(parts) < 2 || parts[1] == "" {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	reqToken := parts[1]
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil || !tkn.Valid {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	uid, err := strconv.Atoi(claims.Subject)
	if err != nil {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx.Set("id", uint(uid))
	ctx.Set("email", claims.Username)
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func (s *TestSuite) SetupSuite() {
	registerValidators()

	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock

	s.Processor = &fakeProcessor{}
	lib.NewPaymentProcessor(s.Processor)

	token, err := generateJWT("someone@example.com", 1)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
		return
	}
	s.Token = &token
}

func (s *TestSuite) TearDownSuite() {
	inner, err := s.DB.DB()
	if err != nil {
		log.Printf("Error accessing inner db instance: %s\n", err.Error())
		return
	}
	inner.Close()
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Setenv("MAINTENANCE_MODE", "false")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestWebhook() {
	router := setupRouter()
	stripeWebhookRoute(router)

	s.Run("Should reject an unsigned delivery with 400", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(`{"id":"evt_bad"}`))
		req.Header.Set("Stripe-Signature", "t=test,v1=bogus")
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should ack an unhandled event type", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`INSERT INTO "webhook_events"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		s.Mock.ExpectCommit()

		payload := `{"id":"evt_test_1","type":"balance.available","data":{"object":{}}}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(payload))
		req.Header.Set("Stripe-Signature", validSignature)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 204, w.Code)
	})

	s.Run("Should ack a redelivered event without reapplying it", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`INSERT INTO "webhook_events"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		s.Mock.ExpectCommit()

		payload := `{"id":"evt_test_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_test_1"}}}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(payload))
		req.Header.Set("Stripe-Signature", validSignature)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 204, w.Code)
	})

	s.Run("Should release the booking on a failed charge", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`INSERT INTO "webhook_events"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		s.Mock.ExpectQuery(`SELECT (.+) FROM "settlements"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "external_charge_id", "status"}).
				AddRow("a4c9e9a2-0000-4000-8000-000000000001", 42, "pi_failed_1", "created"))
		s.Mock.ExpectExec(`UPDATE "settlements"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Mock.ExpectExec(`UPDATE "bookings"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Mock.ExpectCommit()

		payload := `{"id":"evt_test_2","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_failed_1"}}}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(payload))
		req.Header.Set("Stripe-Signature", validSignature)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 204, w.Code)
		assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
	})

	s.Run("Should mark the booking paid on a succeeded charge", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`INSERT INTO "webhook_events"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "requester_id", "provider_id", "status"}).
				AddRow(7, 1, 8, "confirmed"))
		s.Mock.ExpectExec(`UPDATE "bookings"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Mock.ExpectExec(`UPDATE "settlements"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Mock.ExpectCommit()

		payload := `{"id":"evt_test_3","type":"payment_intent.succeeded","data":{"object":{"id":"pi_ok_1","metadata":{"bookingId":"7"}}}}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(payload))
		req.Header.Set("Stripe-Signature", validSignature)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 204, w.Code)
		assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
	})
}

func (s *TestSuite) TestBookings() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)

	token := *s.Token

	s.Run("Should reject an unauthenticated request", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 401, w.Code)
	})

	s.Run("Should return a 400 error for a past date", func() {
		past := time.Now().Add(-24 * time.Hour).Format(config.TIME_PARSE_FORMAT)
		reqBody := types.CreateBookingRequestBody{
			ProviderID:    8,
			ScheduledAt:   past,
			DurationHours: 2,
			Activity:      "coaching",
		}
		rbytes, err := json.Marshal(&reqBody)
		assert.Nil(s.T(), err)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(rbytes)))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)

		resbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		errMsg := gjson.Get(string(resbytes), "error").String()
		assert.NotEmpty(s.T(), errMsg)
	})

	s.Run("Should return a 400 error for a missing provider", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(`{"duration_hours":2}`))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should create a booking with the provider's frozen rate", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hourly_rate"}).
				AddRow(8, "provider@example.com", 80.0))
		s.Mock.ExpectQuery(`INSERT INTO "bookings"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		s.Mock.ExpectCommit()

		future := time.Now().Add(48 * time.Hour).Format(config.TIME_PARSE_FORMAT)
		reqBody := types.CreateBookingRequestBody{
			ProviderID:    8,
			ScheduledAt:   future,
			DurationHours: 2,
			Activity:      "coaching",
			Location:      "Central Park",
		}
		rbytes, err := json.Marshal(&reqBody)
		assert.Nil(s.T(), err)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(rbytes)))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 201, w.Code)

		resbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		sjson := string(resbytes)
		assert.Equal(s.T(), 160.0, gjson.Get(sjson, "data.total_price").Float())
		assert.Equal(s.T(), 80.0, gjson.Get(sjson, "data.hourly_rate").Float())
		assert.Equal(s.T(), "pending", gjson.Get(sjson, "data.status").String())
		assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
	})

	s.Run("Should return both sides of the actor's bookings", func() {
		s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
	})
}

func (s *TestSuite) TestPayments() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	paymentHandlers(apiv1)

	token := *s.Token

	s.Run("Should return a 400 error for a malformed booking id", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/payments/bookings/abc/pay", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should return a zero balance without a connected account", func() {
		s.Mock.ExpectQuery(`SELECT (.+) FROM "connected_accounts"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/payments/payouts/balance", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		resbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), 0.0, gjson.Get(string(resbytes), "available").Float())
	})

	s.Run("Should mint exactly one charge for repeated payment initiation", func() {
		bookingCols := []string{"id", "requester_id", "provider_id", "status", "hourly_rate", "total_price", "payment_reference"}
		acctCols := []string{"id", "provider_id", "account_id", "payouts_enabled", "details_submitted"}
		chargesBefore := s.Processor.chargeCalls

		s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).
				AddRow(7, 1, 8, "confirmed", 80.0, 160.0, nil))
		s.Mock.ExpectQuery(`SELECT (.+) FROM "connected_accounts"`).
			WillReturnRows(sqlmock.NewRows(acctCols).
				AddRow(2, 8, "acct_test_1", true, true))
		s.Mock.ExpectBegin()
		s.Mock.ExpectExec(`UPDATE "bookings"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Mock.ExpectQuery(`INSERT INTO "settlements"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).
				AddRow("a4c9e9a2-0000-4000-8000-000000000002"))
		s.Mock.ExpectCommit()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/payments/bookings/7/pay", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		resbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		first := gjson.Get(string(resbytes), "client_token").String()
		assert.NotEmpty(s.T(), first)

		// The stored payment reference short-circuits the second call.
		s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows(bookingCols).
				AddRow(7, 1, 8, "confirmed", 80.0, 160.0, "pi_test_1"))
		s.Mock.ExpectQuery(`SELECT (.+) FROM "settlements"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "external_charge_id", "client_secret", "status"}).
				AddRow("a4c9e9a2-0000-4000-8000-000000000002", 7, "pi_test_1", "pi_test_1_secret", "created"))

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("POST", "/api/v1/payments/bookings/7/pay", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		resbytes, err = io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		second := gjson.Get(string(resbytes), "client_token").String()

		assert.Equal(s.T(), first, second)
		assert.Equal(s.T(), 1, s.Processor.chargeCalls-chargesBefore)
		assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
	})

	s.Run("Should reject a payout above the available balance", func() {
		s.Mock.ExpectQuery(`SELECT (.+) FROM "connected_accounts"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "provider_id", "account_id", "payouts_enabled", "details_submitted"}).
				AddRow(1, 1, "acct_test_1", true, true))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/payments/payouts/create", strings.NewReader(`{"amount":150}`))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		resbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		errMsg := gjson.Get(string(resbytes), "error").String()
		assert.Contains(s.T(), errMsg, "available")
	})
}

func (s *TestSuite) TestVerification() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	verificationHandlers(apiv1)

	token := *s.Token

	s.Run("Should return a 400 error for a missing document", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/verification/submit", strings.NewReader(`{}`))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
