package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syy-ex/hair-makeover/internal/database"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/payment"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrInvalidChannel = errors.New("invalid payment channel")
	ErrInvalidAction  = errors.New("action must be approve or reject")
	ErrGatewayConfig  = errors.New("payment gateway is not configured")
)

// AllowedRechargeAmounts are the top-up amounts a user may pick, in currency units.
var AllowedRechargeAmounts = []int64{1, 5, 10, 50}

func IsAllowedRechargeAmount(amount int64) bool {
	for _, a := range AllowedRechargeAmounts {
		if a == amount {
			return true
		}
	}
	return false
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	}
	return "", ErrInvalidAction
}

type CreateOrderOptions struct {
	Provider models.PaymentProvider
	Channel  models.PaymentChannel
}

// PaymentSession is what a gateway returned for an order. Empty fields are
// left alone when attached.
type PaymentSession struct {
	Provider        models.PaymentProvider
	Channel         models.PaymentChannel
	ProviderTradeNo string
	PayURL          string
	QRCodeURL       string
}

type HostedPaymentRequest struct {
	Channel   models.PaymentChannel
	ReturnURL string
	ClientIP  string
}

// NotifyPath is where the gateway posts payment results, relative to the
// public base URL.
const NotifyPath = "/api/v1/recharge/notify"

// RechargeService owns the recharge order state machine.
type RechargeService struct {
	store         database.Store
	ledger        *LedgerService
	driver        payment.Driver
	publicBaseURL string
	now           func() time.Time
}

// NewRechargeService creates the service. driver may be nil when no gateway
// is configured; hosted payments then fail with ErrGatewayConfig.
func NewRechargeService(store database.Store, ledger *LedgerService, driver payment.Driver, publicBaseURL string) *RechargeService {
	return &RechargeService{
		store:         store,
		ledger:        ledger,
		driver:        driver,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// CreateOrder 创建待支付的充值订单
func (s *RechargeService) CreateOrder(ctx context.Context, userID string, amount int64, opts CreateOrderOptions) (*models.RechargeOrder, error) {
	if !IsAllowedRechargeAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if opts.Channel != "" {
		if _, ok := models.ParsePaymentChannel(string(opts.Channel)); !ok {
			return nil, ErrInvalidChannel
		}
	}

	order, err := database.Mutate(ctx, s.store, func(snap *database.Snapshot) (*models.RechargeOrder, error) {
		if snap.FindUser(userID) == nil {
			return nil, ErrUserNotFound
		}
		order := &models.RechargeOrder{
			ID:        strings.ReplaceAll(uuid.New().String(), "-", ""),
			UserID:    userID,
			Amount:    amount,
			Points:    amount * models.ExchangeRate,
			Status:    models.OrderStatusPending,
			CreatedAt: s.now().UTC(),
			Provider:  opts.Provider,
			Channel:   opts.Channel,
		}
		snap.RechargeOrders = append(snap.RechargeOrders, order)
		return order.Clone(), nil
	})
	if err != nil {
		return nil, err
	}

	rechargeOrdersCreated.Inc()
	logger.Log.Info("Recharge order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
	)
	return order, nil
}

// AttachPaymentSession merges the non-empty fields of session into the
// order. Returns nil when the order does not exist.
func (s *RechargeService) AttachPaymentSession(ctx context.Context, orderID string, session PaymentSession) (*models.RechargeOrder, error) {
	return database.Mutate(ctx, s.store, func(snap *database.Snapshot) (*models.RechargeOrder, error) {
		order := snap.FindOrder(orderID)
		if order == nil {
			return nil, nil
		}
		if session.Provider != "" {
			order.Provider = session.Provider
		}
		if session.Channel != "" {
			order.Channel = session.Channel
		}
		if session.ProviderTradeNo != "" {
			order.ProviderTradeNo = session.ProviderTradeNo
		}
		if session.PayURL != "" {
			order.PayURL = session.PayURL
		}
		if session.QRCodeURL != "" {
			order.QRCodeURL = session.QRCodeURL
		}
		return order.Clone(), nil
	})
}

// Settle 审核订单：approve 入账积分，reject 仅改状态。
// Returns nil when the order does not exist. An order already in a terminal
// state is returned unchanged, so repeated settlement is a no-op.
func (s *RechargeService) Settle(ctx context.Context, orderID string, decision Decision, note string) (*models.RechargeOrder, error) {
	if _, err := ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	var transitioned bool
	order, err := database.Mutate(ctx, s.store, func(snap *database.Snapshot) (*models.RechargeOrder, error) {
		order := snap.FindOrder(orderID)
		if order == nil {
			return nil, nil
		}
		if order.Status.Terminal() {
			return order.Clone(), nil
		}

		if decision == DecisionApprove {
			if _, err := s.ledger.apply(snap, order.UserID, order.Points, models.RechargeReason(order.ID)); err != nil {
				return nil, err
			}
			order.Status = models.OrderStatusApproved
		} else {
			order.Status = models.OrderStatusRejected
		}

		now := s.now().UTC()
		order.ReviewedAt = &now
		if note != "" {
			order.Note = note
		}
		transitioned = true
		return order.Clone(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("settle order %s: %w", orderID, err)
	}

	if transitioned {
		source := "manual"
		if strings.HasPrefix(note, "auto_") {
			source = "notify"
		}
		rechargeSettlements.WithLabelValues(string(decision), source).Inc()
		if decision == DecisionApprove {
			observeLedgerEntry(order.Points)
		}
		logger.Log.Info("Recharge order settled",
			zap.String("order_id", order.ID),
			zap.String("decision", string(decision)),
			zap.String("source", source),
			zap.Int64("points", order.Points),
		)
	}
	return order, nil
}

// ListOrders 获取订单列表，按创建时间倒序
func (s *RechargeService) ListOrders(ctx context.Context, status *models.OrderStatus) ([]models.RechargeOrder, error) {
	return s.listOrders(ctx, func(o *models.RechargeOrder) bool {
		return status == nil || o.Status == *status
	})
}

// ListUserOrders returns one user's orders, newest first.
func (s *RechargeService) ListUserOrders(ctx context.Context, userID string) ([]models.RechargeOrder, error) {
	return s.listOrders(ctx, func(o *models.RechargeOrder) bool {
		return o.UserID == userID
	})
}

func (s *RechargeService) listOrders(ctx context.Context, keep func(*models.RechargeOrder) bool) ([]models.RechargeOrder, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	orders := make([]models.RechargeOrder, 0)
	for _, o := range snap.RechargeOrders {
		if keep(o) {
			orders = append(orders, *o.Clone())
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// OwnerEmails maps the user ids referenced by orders to their emails. Users
// that no longer exist are absent from the map.
func (s *RechargeService) OwnerEmails(ctx context.Context, orders []models.RechargeOrder) (map[string]string, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	emails := make(map[string]string, len(orders))
	for _, o := range orders {
		if _, seen := emails[o.UserID]; seen {
			continue
		}
		if u := snap.FindUser(o.UserID); u != nil {
			emails[o.UserID] = u.Email
		}
	}
	return emails, nil
}

// GetOrder 根据ID获取订单，不存在时返回 nil
func (s *RechargeService) GetOrder(ctx context.Context, orderID string) (*models.RechargeOrder, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	order := snap.FindOrder(orderID)
	if order == nil {
		return nil, nil
	}
	return order.Clone(), nil
}

// HostedPaymentReady reports whether a gateway and public base URL are
// configured.
func (s *RechargeService) HostedPaymentReady() bool {
	return s.driver != nil && s.publicBaseURL != ""
}

// StartHostedPayment asks the gateway for a hosted page for order and
// records what it returned.
func (s *RechargeService) StartHostedPayment(ctx context.Context, order *models.RechargeOrder, req HostedPaymentRequest) (*models.RechargeOrder, error) {
	if !s.HostedPaymentReady() {
		return nil, ErrGatewayConfig
	}
	if _, ok := models.ParsePaymentChannel(string(req.Channel)); !ok {
		return nil, ErrInvalidChannel
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.publicBaseURL
	}
	result, err := s.driver.CreateOrder(ctx, payment.CreateOrderInput{
		Amount:     order.Amount,
		OutTradeNo: order.ID,
		Name:       fmt.Sprintf("Hair makeover %d points", order.Points),
		NotifyURL:  s.publicBaseURL + NotifyPath,
		ReturnURL:  returnURL,
		Channel:    req.Channel,
		ClientIP:   req.ClientIP,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.AttachPaymentSession(ctx, order.ID, PaymentSession{
		Provider:        s.driver.Name(),
		Channel:         req.Channel,
		ProviderTradeNo: result.TradeNo,
		PayURL:          result.PayURL,
		QRCodeURL:       result.QRCodeURL,
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}
	return updated, nil
}
