package link

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/affiliate"
	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"go.uber.org/zap"
)

const (
	codeAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
	codeLength    = 6
	codeAttempts  = 5
	DefaultPublic = "http://localhost:8080"
)

type Repository interface {
	CreateLink(ctx context.Context, l *link.Link) error
	FindLinkByCode(ctx context.Context, code string) (*link.Link, error)
	ListLinksByAccount(ctx context.Context, accountID int64) ([]link.Link, error)
	IncrementClicks(ctx context.Context, code string) error
}

type Service struct {
	repo    Repository
	network affiliate.Network
	baseURL string
	newCode func() (string, error)
}

func NewService(repo Repository, network affiliate.Network, publicBaseURL string) *Service {
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublic
	}
	return &Service{
		repo:    repo,
		network: network,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		newCode: ShortCode,
	}
}

// ShortCode returns a random code over an alphabet without look-alike
// characters.
func ShortCode() (string, error) {
	base := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Creator is the device fingerprint stored with a link.
type Creator struct {
	AccountID int64
	IP        string
	UserAgent string
}

func (s *Service) Generate(ctx context.Context, c Creator, rawURL string) (*link.GenerateResponse, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, ok := ParseURL(rawURL)
	if !ok {
		return nil, fmt.Errorf("%q: %w", rawURL, apperr.ErrInvalidURL)
	}
	platform, ok := DetectPlatform(u)
	if !ok {
		return nil, fmt.Errorf("%s: %w", u.Host, apperr.ErrUnsupportedPlatform)
	}

	quote, err := s.network.GenerateLink(ctx, rawURL, platform)
	if err != nil {
		return nil, fmt.Errorf("affiliate network: %w", err)
	}

	l := &link.Link{
		AccountID:        c.AccountID,
		Platform:         platform,
		OriginalURL:      rawURL,
		AffiliateURL:     quote.AffiliateURL,
		CommissionRate:   quote.CommissionRate,
		CreatorIP:        c.IP,
		CreatorUserAgent: c.UserAgent,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.insertWithCode(ctx, l); err != nil {
		return nil, err
	}

	logger.Log.Info("tracking link created",
		zap.Int64("account_id", c.AccountID),
		zap.String("platform", string(platform)),
		zap.String("short_code", l.ShortCode),
	)
	return &link.GenerateResponse{
		Platform:            platform,
		OriginalURL:         rawURL,
		AffiliateURL:        l.AffiliateURL,
		ShortCode:           l.ShortCode,
		ShortURL:            s.ShortURL(l.ShortCode),
		EstimatedCommission: l.CommissionRate.String() + "%",
	}, nil
}

func (s *Service) insertWithCode(ctx context.Context, l *link.Link) error {
	for i := 0; i < codeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return fmt.Errorf("short code: %w", err)
		}
		l.ShortCode = code
		err = s.repo.CreateLink(ctx, l)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("short code: %d collisions: %w", codeAttempts, apperr.ErrConflict)
}

func (s *Service) ShortURL(code string) string {
	return s.baseURL + "/r/" + code
}

func (s *Service) List(ctx context.Context, accountID int64) ([]link.Link, error) {
	return s.repo.ListLinksByAccount(ctx, accountID)
}

// Resolve counts a click and returns the link to redirect to.
func (s *Service) Resolve(ctx context.Context, code string) (*link.Link, error) {
	l, err := s.repo.FindLinkByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IncrementClicks(ctx, code); err != nil {
		logger.Log.Warn("click not counted", zap.String("short_code", code), zap.Error(err))
	}
	return l, nil
}

func (s *Service) Find(ctx context.Context, code string) (*link.Link, error) {
	return s.repo.FindLinkByCode(ctx, code)
}

// CheckSelfReferral flags a purchase made from the link creator's own IP.
func CheckSelfReferral(l *link.Link, purchaserIP string) (bool, string) {
	if l == nil || l.CreatorIP == "" || purchaserIP == "" {
		return false, ""
	}
	if l.CreatorIP == purchaserIP {
		return true, fmt.Sprintf("self-referral: purchase IP %s matches link creator IP", purchaserIP)
	}
	return false, ""
}
