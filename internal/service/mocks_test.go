package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"checkout-service/internal/gatewayclient"
	"checkout-service/internal/models"
)

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]*models.PaymentAttempt
	failNext error
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[string]*models.PaymentAttempt)}
}

func (f *fakeAttemptStore) CreatePaymentAttempt(_ context.Context, attempt *models.PaymentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	cp := *attempt
	f.attempts[attempt.AttemptToken] = &cp
	return nil
}

func (f *fakeAttemptStore) UpdateAttemptStatus(_ context.Context, token, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[token]; ok {
		a.Status = status
	}
	return nil
}

func (f *fakeAttemptStore) SetAttemptGatewayResult(_ context.Context, token, gwOrderID, gwPaymentID, signature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[token]; ok {
		a.GatewayOrderID = gwOrderID
		a.GatewayPaymentID = gwPaymentID
		a.Signature = signature
	}
	return nil
}

func (f *fakeAttemptStore) status(token string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[token]; ok {
		return a.Status
	}
	return ""
}

type fakeCouponStore struct {
	mu      sync.Mutex
	coupons map[string]*models.Coupon
}

func newFakeCouponStore(coupons ...*models.Coupon) *fakeCouponStore {
	f := &fakeCouponStore{coupons: make(map[string]*models.Coupon)}
	for _, c := range coupons {
		f.coupons[c.Code] = c
	}
	return f
}

func (f *fakeCouponStore) LookupCoupon(_ context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[code]
	if !ok {
		return nil, models.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouponStore) IncrementUsage(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[code]
	if !ok {
		return models.ErrCouponNotFound
	}
	if c.MaxUsageCount > 0 && c.CurrentUsageCount >= c.MaxUsageCount {
		return models.ErrCouponExhausted
	}
	c.CurrentUsageCount++
	return nil
}

type fakeOrderStore struct {
	mu        sync.Mutex
	byRef     map[string]*models.Order
	nextID    int64
	createErr error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{byRef: make(map[string]*models.Order)}
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, order *models.Order) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	if _, exists := f.byRef[order.PaymentRef]; exists {
		return false, nil
	}
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	cp := *order
	f.byRef[order.PaymentRef] = &cp
	return true, nil
}

func (f *fakeOrderStore) GetOrderByPaymentRef(_ context.Context, ref string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byRef[ref]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) GetOrderByNumber(_ context.Context, number string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byRef {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, models.ErrOrderNotFound
}

func (f *fakeOrderStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byRef)
}

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	errOn error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOn != nil {
		return false, f.errOn
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}

type fakeCartService struct {
	mu      sync.Mutex
	carts   map[string]*models.CartSnapshot
	cleared []string
	getErr  error
}

func newFakeCartService(snapshots ...*models.CartSnapshot) *fakeCartService {
	f := &fakeCartService{carts: make(map[string]*models.CartSnapshot)}
	for _, s := range snapshots {
		f.carts[s.SessionID] = s
	}
	return f
}

func (f *fakeCartService) GetCart(_ context.Context, sessionID string) (*models.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.carts[sessionID]
	if !ok {
		return nil, errors.New("cart not found")
	}
	return s, nil
}

func (f *fakeCartService) ClearCart(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func (f *fakeCartService) clearedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cleared)
}

type fakePublisher struct {
	mu        sync.Mutex
	confirmed []*models.CheckoutConfirmedEvent
	failed    []*models.CheckoutFailedEvent
	captured  []*models.PaymentCapturedEvent
	rejected  []*models.SignatureRejectedEvent
}

func newFakePublisher() *fakePublisher { return &fakePublisher{} }

func (f *fakePublisher) PublishCheckoutConfirmed(_ context.Context, e *models.CheckoutConfirmedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, e)
	return nil
}

func (f *fakePublisher) PublishCheckoutFailed(_ context.Context, e *models.CheckoutFailedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, e)
	return nil
}

func (f *fakePublisher) PublishPaymentCaptured(_ context.Context, e *models.PaymentCapturedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, e)
	return nil
}

func (f *fakePublisher) PublishSignatureRejected(_ context.Context, e *models.SignatureRejectedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, e)
	return nil
}

type fakeGatewayAPI struct {
	mu         sync.Mutex
	createErr  error
	fetchErr   error
	fetchState string
	created    int
	fetched    int
}

func newFakeGatewayAPI() *fakeGatewayAPI {
	return &fakeGatewayAPI{fetchState: "captured"}
}

func (f *fakeGatewayAPI) CreateTransaction(_ context.Context, amountMinor int64, receipt string, _ map[string]string) (*gatewayclient.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &gatewayclient.Transaction{
		GatewayOrderID: "order_" + receipt,
		Amount:         amountMinor,
		Currency:       "INR",
		Status:         "created",
		ClientKey:      "rzp_test_key",
	}, nil
}

func (f *fakeGatewayAPI) FetchPayment(_ context.Context, gatewayPaymentID string) (*gatewayclient.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.fetched++
	return &gatewayclient.Payment{
		GatewayPaymentID: gatewayPaymentID,
		Status:           f.fetchState,
	}, nil
}

// scriptedSurface settles every collection with a canned outcome. When
// sign is set it produces a valid signature for the created transaction.
type scriptedSurface struct {
	outcome   string
	paymentID string
	signature string
	sign      func(gatewayOrderID, gatewayPaymentID string) string
	lastReq   *CollectRequest
}

func (s *scriptedSurface) Collect(_ context.Context, req *CollectRequest) (*CollectResponse, error) {
	s.lastReq = req
	resp := &CollectResponse{
		Outcome:          s.outcome,
		GatewayPaymentID: s.paymentID,
		Signature:        s.signature,
	}
	if s.sign != nil {
		resp.Signature = s.sign(req.GatewayOrderID, s.paymentID)
	}
	return resp, nil
}
