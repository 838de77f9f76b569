package checkout

import (
	"context"
	"errors"
	"testing"

	"scholarpay/internal/config"
	"scholarpay/internal/models"
	"scholarpay/internal/repositories"
	"scholarpay/internal/services/discount"
	"scholarpay/internal/services/processor"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetUserWithPackage(ctx context.Context, userID uint) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type MockScholarshipStore struct {
	mock.Mock
}

func (m *MockScholarshipStore) GetScholarship(ctx context.Context, id uint) (*models.Scholarship, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.Scholarship)
	return s, args.Error(1)
}

type MockApplicationStore struct {
	mock.Mock
}

func (m *MockApplicationStore) GetApplication(ctx context.Context, id uint) (*models.Application, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Application)
	return a, args.Error(1)
}

func (m *MockApplicationStore) UpsertPendingApplication(ctx context.Context, studentID, scholarshipID uint) (*models.Application, error) {
	args := m.Called(ctx, studentID, scholarshipID)
	a, _ := args.Get(0).(*models.Application)
	return a, args.Error(1)
}

type MockRates struct {
	mock.Mock
}

func (m *MockRates) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	args := m.Called(ctx, base, quote)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) CreateCheckout(ctx context.Context, req processor.SessionRequest) (*processor.Session, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(*processor.Session)
	return s, args.Error(1)
}

func (m *MockProcessor) RetrieveCheckout(ctx context.Context, id string) (*processor.Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*processor.Session)
	return s, args.Error(1)
}

// stubResolver passes the canonical amount through unless out is set.
type stubResolver struct {
	out *discount.ResolvedAmount
	in  discount.ResolveInput
}

func (r *stubResolver) Resolve(_ context.Context, in discount.ResolveInput) (*discount.ResolvedAmount, error) {
	r.in = in
	if r.out != nil {
		return r.out, nil
	}
	return &discount.ResolvedAmount{Amount: in.CanonicalAmount}, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int    { return &v }

type fixture struct {
	users        *MockUserStore
	scholarships *MockScholarshipStore
	applications *MockApplicationStore
	rates        *MockRates
	processor    *MockProcessor
	resolver     *stubResolver
	svc          Service
}

func newFixture() *fixture {
	f := &fixture{
		users:        new(MockUserStore),
		scholarships: new(MockScholarshipStore),
		applications: new(MockApplicationStore),
		rates:        new(MockRates),
		processor:    new(MockProcessor),
		resolver:     &stubResolver{},
	}
	f.svc = NewService(Dependencies{
		Users:        f.users,
		Scholarships: f.scholarships,
		Applications: f.applications,
		Pricing:      config.DefaultPricing(),
		Discounts:    f.resolver,
		Rates:        f.rates,
		Processor:    f.processor,
	})
	return f
}

func student(id uint) *models.User {
	return &models.User{Model: gorm.Model{ID: id}, Email: "student@example.com", Name: "Ana"}
}

func TestQuote_BaseAmount(t *testing.T) {
	pkg := &models.FeePackage{
		Name:                "partner",
		SelectionProcessFee: decimal.NewNullDecimal(d("200")),
	}

	tests := []struct {
		name        string
		user        func() *models.User
		req         Request
		scholarship *models.Scholarship
		wantBase    string
		wantGross   int64
	}{
		{
			name:      "simplified table",
			user:      func() *models.User { return student(1) },
			req:       Request{FeeType: models.FeeTypeSelectionProcess},
			wantBase:  "350",
			wantGross: 36452,
		},
		{
			name: "legacy table",
			user: func() *models.User {
				u := student(1)
				u.PricingMode = models.PricingLegacy
				return u
			},
			req:       Request{FeeType: models.FeeTypeSelectionProcess},
			wantBase:  "400",
			wantGross: 41655,
		},
		{
			name: "package override",
			user: func() *models.User {
				u := student(1)
				u.Package = pkg
				return u
			},
			req:       Request{FeeType: models.FeeTypeSelectionProcess},
			wantBase:  "200",
			wantGross: 20843,
		},
		{
			name:        "scholarship overrides application fee",
			user:        func() *models.User { return student(1) },
			req:         Request{FeeType: models.FeeTypeApplicationFee, ScholarshipID: uintPtr(4)},
			scholarship: &models.Scholarship{Model: gorm.Model{ID: 4}, ApplicationFeeAmount: decimal.NewNullDecimal(d("250"))},
			wantBase:    "250",
			wantGross:   26046,
		},
		{
			name: "legacy dependents surcharge",
			user: func() *models.User {
				u := student(1)
				u.PricingMode = models.PricingLegacy
				u.Dependents = 2
				return u
			},
			req:         Request{FeeType: models.FeeTypeApplicationFee, ScholarshipID: uintPtr(4)},
			scholarship: &models.Scholarship{Model: gorm.Model{ID: 4}},
			wantBase:    "550",
			wantGross:   57264,
		},
		{
			name: "request dependents override stored count",
			user: func() *models.User {
				u := student(1)
				u.PricingMode = models.PricingLegacy
				u.Dependents = 2
				return u
			},
			req:         Request{FeeType: models.FeeTypeApplicationFee, ScholarshipID: uintPtr(4), Dependents: intPtr(0)},
			scholarship: &models.Scholarship{Model: gorm.Model{ID: 4}},
			wantBase:    "350",
			wantGross:   36452,
		},
		{
			name: "simplified ignores dependents",
			user: func() *models.User {
				u := student(1)
				u.Dependents = 3
				return u
			},
			req:         Request{FeeType: models.FeeTypeApplicationFee, ScholarshipID: uintPtr(4)},
			scholarship: &models.Scholarship{Model: gorm.Model{ID: 4}},
			wantBase:    "350",
			wantGross:   36452,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.users.On("GetUserWithPackage", mock.Anything, uint(1)).Return(tt.user(), nil)
			if tt.scholarship != nil {
				f.scholarships.On("GetScholarship", mock.Anything, tt.scholarship.ID).Return(tt.scholarship, nil)
			}

			req := tt.req
			req.UserID = 1
			q, err := f.svc.Quote(context.Background(), req)
			require.NoError(t, err)
			assert.True(t, q.BaseAmount.Equal(d(tt.wantBase)), "base %s", q.BaseAmount)
			assert.True(t, f.resolver.in.CanonicalAmount.Equal(d(tt.wantBase)))
			assert.Equal(t, tt.wantGross, q.GrossAmountMinorUnits)
			assert.Equal(t, models.CurrencyUSD, q.Currency)
			f.processor.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything)
		})
	}
}

func TestQuote_Validation(t *testing.T) {
	f := newFixture()
	f.users.On("GetUserWithPackage", mock.Anything, uint(1)).Return(student(1), nil)
	f.users.On("GetUserWithPackage", mock.Anything, uint(2)).Return(nil, repositories.ErrUserNotFound)
	f.applications.On("GetApplication", mock.Anything, uint(8)).
		Return(&models.Application{Model: gorm.Model{ID: 8}, StudentID: 99, ScholarshipID: 4}, nil)
	f.applications.On("GetApplication", mock.Anything, uint(9)).
		Return(&models.Application{Model: gorm.Model{ID: 9}, StudentID: 1, ScholarshipID: 4}, nil)
	f.applications.On("GetApplication", mock.Anything, uint(10)).Return(nil, repositories.ErrApplicationNotFound)
	f.scholarships.On("GetScholarship", mock.Anything, uint(5)).Return(nil, repositories.ErrScholarshipNotFound)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown fee type", Request{UserID: 1, FeeType: "late_fee"}, models.ErrInvalidFeeType},
		{"unknown rail", Request{UserID: 1, FeeType: models.FeeTypeSelectionProcess, Rail: "wire"}, models.ErrInvalidRail},
		{"negative dependents", Request{UserID: 1, FeeType: models.FeeTypeApplicationFee, Dependents: intPtr(-1)}, ErrInvalidDependents},
		{"unknown user", Request{UserID: 2, FeeType: models.FeeTypeSelectionProcess}, ErrUserNotFound},
		{"scholarship required", Request{UserID: 1, FeeType: models.FeeTypeScholarshipFee}, ErrScholarshipRequired},
		{"foreign application", Request{UserID: 1, FeeType: models.FeeTypeScholarshipFee, ApplicationID: uintPtr(8)}, ErrApplicationNotOwned},
		{"mismatched scholarship", Request{UserID: 1, FeeType: models.FeeTypeScholarshipFee, ApplicationID: uintPtr(9), ScholarshipID: uintPtr(5)}, ErrApplicationMismatch},
		{"missing application", Request{UserID: 1, FeeType: models.FeeTypeScholarshipFee, ApplicationID: uintPtr(10)}, ErrApplicationNotFound},
		{"missing scholarship", Request{UserID: 1, FeeType: models.FeeTypeApplicationFee, ScholarshipID: uintPtr(5)}, ErrScholarshipNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Quote(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuote_MinimumCharge(t *testing.T) {
	f := newFixture()
	f.users.On("GetUserWithPackage", mock.Anything, uint(1)).Return(student(1), nil)
	f.resolver.out = &discount.ResolvedAmount{
		Amount: decimal.Zero,
		Discount: &models.Discount{Kind: models.DiscountKindCoupon, Coupon: &models.CouponDiscount{
			Code: "FREE", DiscountType: models.CouponPercentage, DiscountValue: d("100"),
			OriginalAmount: d("350"), DiscountAmount: d("350"), FinalAmount: decimal.Zero,
		}},
	}

	q, err := f.svc.Quote(context.Background(), Request{UserID: 1, FeeType: models.FeeTypeSelectionProcess, CouponCode: "FREE"})
	require.NoError(t, err)
	assert.True(t, q.NetAmount.Equal(d("0.50")), "net %s", q.NetAmount)
	assert.Equal(t, int64(84), q.GrossAmountMinorUnits)
}

func TestBuildAndSubmit_Card(t *testing.T) {
	f := newFixture()
	f.users.On("GetUserWithPackage", mock.Anything, uint(1)).Return(student(1), nil)
	f.resolver.out = &discount.ResolvedAmount{
		Amount: d("300"),
		Discount: &models.Discount{Kind: models.DiscountKindReferral, Referral: &models.ReferralDiscount{
			ReferrerID: 77, AffiliateCode: "MATR50", DiscountAmount: d("50"), ChargeAmount: d("50"),
		}},
	}

	var sent processor.SessionRequest
	f.processor.On("CreateCheckout", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(processor.SessionRequest) }).
		Return(&processor.Session{ID: "cs_test_1", RedirectURL: "https://pay.example/cs_test_1"}, nil)

	res, err := f.svc.BuildAndSubmit(context.Background(), Request{
		UserID:         1,
		FeeType:        models.FeeTypeSelectionProcess,
		Metadata:       map[string]string{"source": "dashboard", models.MetaUserID: "999"},
		IdempotencyKey: "req-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "https://pay.example/cs_test_1", res.RedirectURL)
	assert.Equal(t, "cs_test_1", res.Intent.ExternalSessionID)
	assert.Equal(t, int64(31249), res.Intent.GrossAmountMinorUnits)

	assert.Equal(t, []string{"card"}, sent.PaymentMethodTypes)
	assert.Equal(t, "usd", sent.LineItem.Currency)
	assert.Equal(t, int64(31249), sent.LineItem.AmountMinorUnits)
	assert.Contains(t, sent.LineItem.Description, "MATR50")
	assert.Equal(t, "1", sent.ClientReferenceID)
	assert.Equal(t, "req-1", sent.IdempotencyKey)
	assert.Equal(t, "dashboard", sent.Metadata["source"])
	assert.Equal(t, "1", sent.Metadata[models.MetaUserID])

	decoded, err := models.DecodeIntentMetadata("cs_test_1", sent.Metadata)
	require.NoError(t, err)
	assert.Equal(t, models.FeeTypeSelectionProcess, decoded.FeeType)
	assert.True(t, decoded.NetAmount.Equal(d("300")))
	require.NotNil(t, decoded.Discount)
	assert.Equal(t, uint(77), decoded.Discount.Referral.ReferrerID)
}

func TestBuildAndSubmit_InstantTransfer(t *testing.T) {
	f := newFixture()
	f.users.On("GetUserWithPackage", mock.Anything, uint(1)).Return(student(1), nil)
	f.rates.On("Rate", mock.Anything, models.CurrencyUSD, models.CurrencyBRL).Return(d("5.6"), nil)
	f.processor.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req processor.SessionRequest) bool {
		return req.PaymentMethodTypes[0] == "pix" &&
			req.LineItem.Currency == models.CurrencyBRL &&
			req.LineItem.AmountMinorUnits == 513187 &&
			req.Metadata[models.MetaExchangeRate] == "5.6"
	})).Return(&processor.Session{ID: "cs_pix"}, nil)

	res, err := f.svc.BuildAndSubmit(context.Background(), Request{
		UserID:  1,
		FeeType: models.FeeTypeI20ControlFee,
		Rail:    models.RailInstantTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CurrencyBRL, res.Intent.Currency)
	assert.True(t, res.Intent.NetAmount.Equal(d("900")))
	f.processor.AssertExpectations(t)
}

func TestBuildAndSubmit_CreatesApplication(t *testing.T) {
	f := newFixture()
	f.users.On("GetUserWithPackage", mock.Anything, uint(1)).Return(student(1), nil)
	f.scholarships.On("GetScholarship", mock.Anything, uint(4)).Return(&models.Scholarship{Model: gorm.Model{ID: 4}}, nil)
	f.applications.On("UpsertPendingApplication", mock.Anything, uint(1), uint(4)).
		Return(&models.Application{Model: gorm.Model{ID: 12}, StudentID: 1, ScholarshipID: 4}, nil).Once()
	f.processor.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req processor.SessionRequest) bool {
		return req.Metadata[models.MetaApplicationID] == "12"
	})).Return(&processor.Session{ID: "cs_app"}, nil)

	res, err := f.svc.BuildAndSubmit(context.Background(), Request{
		UserID:        1,
		FeeType:       models.FeeTypeApplicationFee,
		ScholarshipID: uintPtr(4),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Intent.ApplicationID)
	assert.Equal(t, uint(12), *res.Intent.ApplicationID)
	f.applications.AssertExpectations(t)
	f.processor.AssertExpectations(t)
}

func TestBuildAndSubmit_ProcessorErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"network failure is retryable", errors.New("dial tcp: timeout"), processor.ErrProcessorUnavailable},
		{"unavailable passes through", processor.ErrProcessorUnavailable, processor.ErrProcessorUnavailable},
		{"invalid request is not retryable", processor.ErrInvalidRequest, processor.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.users.On("GetUserWithPackage", mock.Anything, uint(1)).Return(student(1), nil)
			f.processor.On("CreateCheckout", mock.Anything, mock.Anything).Return(nil, tt.err)

			_, err := f.svc.BuildAndSubmit(context.Background(), Request{UserID: 1, FeeType: models.FeeTypeSelectionProcess})
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantErr == processor.ErrInvalidRequest {
				assert.NotErrorIs(t, err, processor.ErrProcessorUnavailable)
			}
		})
	}
}

func TestBuildAndSubmit_ReportsCouponRejection(t *testing.T) {
	f := newFixture()
	f.users.On("GetUserWithPackage", mock.Anything, uint(1)).Return(student(1), nil)
	f.resolver.out = &discount.ResolvedAmount{
		Amount:          d("350"),
		CouponRejection: &discount.CouponRejection{Code: "OLD", Reason: "coupon expired"},
	}
	f.processor.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req processor.SessionRequest) bool {
		_, hasCoupon := req.Metadata[models.MetaCouponCode]
		return !hasCoupon
	})).Return(&processor.Session{ID: "cs_x"}, nil)

	res, err := f.svc.BuildAndSubmit(context.Background(), Request{UserID: 1, FeeType: models.FeeTypeSelectionProcess, CouponCode: "OLD"})
	require.NoError(t, err)
	require.NotNil(t, res.CouponRejection)
	assert.Equal(t, "OLD", res.CouponRejection.Code)
	assert.Equal(t, "OLD", f.resolver.in.CouponCode)
}
