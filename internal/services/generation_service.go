package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

// GenerationCost is the number of points one generation costs.
const GenerationCost int64 = 5

const defaultHairPrompt = "保留人物五官与肤色，完全替换原有发型为参考图发型，去掉原发型痕迹，不要叠加或残影，只保留一个发型，发际线自然，发丝清晰，保持光线与肤色自然，背景不变"

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNoOutput           = errors.New("generation returned no images")
	ErrInvalidImage       = errors.New("image must be a base64 data url")
)

// GenerateRequest carries the two input images as data URLs.
type GenerateRequest struct {
	UserImage      string
	HairstyleImage string
	Prompt         string
}

// ImageGenerator produces result image references (URLs or data URLs).
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]string, error)
}

// readiness is implemented by generators that can tell up front that they
// are not configured.
type readiness interface {
	Ready() bool
}

// GenerationService charges for a generation up front and refunds it when
// no image comes back.
type GenerationService struct {
	ledger    *LedgerService
	generator ImageGenerator
}

func NewGenerationService(ledger *LedgerService, generator ImageGenerator) *GenerationService {
	return &GenerationService{ledger: ledger, generator: generator}
}

// Generate 扣除积分后调用生成接口，失败或取消时退还积分
func (s *GenerationService) Generate(ctx context.Context, userID string, req GenerateRequest) ([]string, error) {
	if req.Prompt == "" {
		req.Prompt = defaultHairPrompt
	}
	if req.UserImage == "" || req.HairstyleImage == "" {
		return nil, ErrInvalidImage
	}

	if r, ok := s.generator.(readiness); ok && !r.Ready() {
		return nil, ErrGeneratorConfig
	}

	debit, err := s.ledger.Debit(ctx, userID, GenerationCost, models.ReasonGenerate)
	if err != nil {
		return nil, err
	}
	if !debit.OK {
		return nil, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientPoints, debit.Balance, GenerationCost)
	}

	output, err := s.generator.Generate(ctx, req)
	if err == nil && len(output) == 0 {
		err = ErrNoOutput
	}
	if err != nil {
		s.refund(ctx, userID)
		return nil, err
	}
	return output, nil
}

// refund is best effort. Its failure is logged and never replaces the
// generation error.
func (s *GenerationService) refund(ctx context.Context, userID string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.ledger.Credit(ctx, userID, GenerationCost, models.ReasonGenerateRefund); err != nil {
		logger.Log.Warn("Failed to refund generation points",
			zap.String("user_id", userID),
			zap.Int64("points", GenerationCost),
			zap.Error(err),
		)
	}
}
