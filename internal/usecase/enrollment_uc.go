package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/domain/ports/repository"
	"edtech-enrollment/internal/infra/logging"
	"edtech-enrollment/internal/infra/metrics"
)

// Compile-time check
var _ EnrollmentUseCase = (*enrollmentUC)(nil)

// CallbackPath is where the provider sends the payer back after checkout.
const CallbackPath = "/api/v1/enrollments/callback"

// EnrollmentIntake is the enrollment form as submitted by the browser.
type EnrollmentIntake struct {
	Email      string  `json:"email" validate:"required,email"`
	Phone      string  `json:"phone" validate:"required,phone"`
	AgeBand    string  `json:"ageBand" validate:"required"`
	ParentName string  `json:"parentName" validate:"max=120"`
	ChildName  string  `json:"childName" validate:"max=120"`
	AmountGhs  float64 `json:"amountGhs" validate:"required,gt=0"`
}

type InitResult struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
	AccessCode       string `json:"access_code"`
	Message          string `json:"message"`
}

// EnrollmentDetails is the operator view of one enrollment.
type EnrollmentDetails struct {
	Enrollment   *model.Enrollment   `json:"enrollment"`
	Payments     []*model.Payment    `json:"payments"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
}

type EnrollmentUseCase interface {
	// Initiate validates the intake, records a pending enrollment and asks the provider
	// for a hosted checkout page. requestHost is used for the callback URL when no
	// public origin is configured.
	Initiate(ctx context.Context, in EnrollmentIntake, requestHost string) (*InitResult, error)
	Details(ctx context.Context, reference string) (*EnrollmentDetails, error)
}

type EnrollmentConfig struct {
	Prices       model.PriceTable
	Currency     string
	Channels     []string
	PublicOrigin string // scheme://host without trailing slash; empty -> https://<requestHost>
	Dev          bool
}

type enrollmentUC struct {
	enrollments repository.EnrollmentRepository
	payments    repository.PaymentRepository
	subs        repository.SubscriptionRepository
	gateway     adapter.PaymentGateway
	cfg         EnrollmentConfig
	validate    *validator.Validate
	log         *zerolog.Logger
}

func NewEnrollmentUseCase(
	enrollments repository.EnrollmentRepository,
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	cfg EnrollmentConfig,
	logger *zerolog.Logger,
) *enrollmentUC {
	if len(cfg.Prices) == 0 {
		cfg.Prices = model.DefaultPriceTable()
	}
	if cfg.Currency == "" {
		cfg.Currency = "GHS"
	}
	compLog := logger.With().Str("component", "EnrollmentUC").Logger()
	return &enrollmentUC{
		enrollments: enrollments,
		payments:    payments,
		subs:        subs,
		gateway:     gateway,
		cfg:         cfg,
		validate:    newIntakeValidator(),
		log:         &compLog,
	}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

func newIntakeValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

func (u *enrollmentUC) Initiate(ctx context.Context, in EnrollmentIntake, requestHost string) (res *InitResult, err error) {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "EnrollmentUC.Initiate")()

	start := time.Now()
	defer func() { metrics.ObserveEnrollmentInitialize(initializeResult(err), time.Since(start)) }()

	in = normalizeIntake(in)
	price, err := u.checkIntake(in)
	if err != nil {
		log.Info().Err(err).Msg("enrollment intake rejected")
		return nil, err
	}

	reference := "ENR-" + ulid.Make().String()
	amount := model.ToMinorUnits(price)
	e, err := model.NewPendingEnrollment(reference, in.Email, in.Phone, in.ParentName, in.ChildName, model.AgeBand(in.AgeBand), amount, u.cfg.Currency)
	if err != nil {
		return nil, err
	}
	if err := u.enrollments.Create(ctx, repository.NoTX, e); err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("failed to record pending enrollment")
		return nil, fmt.Errorf("record enrollment: %w", err)
	}

	callback := u.callbackURL(requestHost)
	if callback == "" {
		log.Warn().Str("reference", reference).Msg("no public origin or host; provider default callback will be used")
	}
	out, err := u.gateway.InitializeTransaction(ctx, adapter.InitializeRequest{
		Email:       in.Email,
		AmountMinor: amount,
		Currency:    u.cfg.Currency,
		Reference:   reference,
		CallbackURL: callback,
		Channels:    u.cfg.Channels,
		Metadata: map[string]any{
			"enrollment_ref": reference,
			"phone":          in.Phone,
			"age_band":       in.AgeBand,
			"parent_name":    in.ParentName,
			"child_name":     in.ChildName,
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("reference", reference).Msg("provider initialize failed")
		return nil, err
	}

	log.Info().
		Str("reference", reference).
		Str("email", logging.Redact(in.Email, u.cfg.Dev)).
		Str("age_band", in.AgeBand).
		Int64("amount", amount).
		Msg("checkout initialized")

	return &InitResult{
		AuthorizationURL: out.AuthorizationURL,
		Reference:        reference,
		AccessCode:       out.AccessCode,
		Message:          out.Message,
	}, nil
}

// checkIntake runs struct validation, then resolves the band price. The client amount
// must equal the configured price; the configured price is what gets charged.
func (u *enrollmentUC) checkIntake(in EnrollmentIntake) (float64, error) {
	verr := &domain.ValidationError{}
	if err := u.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return 0, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), describeFieldError(fe))
		}
	}

	price, ok := u.cfg.Prices.Price(model.AgeBand(in.AgeBand))
	switch {
	case in.AgeBand == "":
	case !ok:
		verr.Add("ageBand", "must be one of "+joinBands(u.cfg.Prices.Bands()))
	case in.AmountGhs > 0 && model.ToMinorUnits(in.AmountGhs) != model.ToMinorUnits(price):
		verr.Add("amountGhs", "amount does not match age band")
	}

	if len(verr.Fields) > 0 {
		return 0, verr
	}
	return price, nil
}

func joinBands(bands []model.AgeBand) string {
	names := make([]string, len(bands))
	for i, b := range bands {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be 9 to 15 digits, optionally starting with +"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func normalizeIntake(in EnrollmentIntake) EnrollmentIntake {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(in.Phone))
	in.AgeBand = strings.TrimSpace(in.AgeBand)
	in.ParentName = strings.TrimSpace(in.ParentName)
	in.ChildName = strings.TrimSpace(in.ChildName)
	return in
}

// callbackURL returns "" when neither a public origin nor a host is known.
func (u *enrollmentUC) callbackURL(requestHost string) string {
	origin := u.cfg.PublicOrigin
	if origin == "" {
		host := strings.TrimSpace(requestHost)
		if host == "" {
			return ""
		}
		origin = "https://" + host
	}
	return strings.TrimRight(origin, "/") + CallbackPath
}

func initializeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}

func (u *enrollmentUC) Details(ctx context.Context, reference string) (*EnrollmentDetails, error) {
	e, err := u.enrollments.FindByID(ctx, repository.NoTX, reference)
	if err != nil {
		return nil, err
	}
	payments, err := u.payments.ListByEnrollment(ctx, repository.NoTX, reference)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*model.Payment{}
	}
	out := &EnrollmentDetails{Enrollment: e, Payments: payments}

	sub, err := u.subs.FindByEnrollment(ctx, repository.NoTX, reference)
	switch {
	case err == nil:
		out.Subscription = sub
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}
	return out, nil
}
